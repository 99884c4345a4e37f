package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talentpulse/internal/common"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type typePreferenceDocument struct {
	Enabled  bool     `bson:"enabled"`
	Channels []string `bson:"channels"`
	Priority string   `bson:"priority,omitempty"`
}

type preferencesDocument struct {
	UserID   string `bson:"_id,omitempty"`
	Channels struct {
		Push  bool `bson:"push"`
		Email bool `bson:"email"`
		SMS   bool `bson:"sms"`
		InApp bool `bson:"in_app"`
	} `bson:"channels"`
	Types      map[string]typePreferenceDocument `bson:"types"`
	QuietHours struct {
		Enabled  bool   `bson:"enabled"`
		Start    string `bson:"start"`
		End      string `bson:"end"`
		Timezone string `bson:"timezone"`
	} `bson:"quiet_hours"`
	MaxFrequency struct {
		Enabled    bool `bson:"enabled"`
		MaxPerHour int  `bson:"max_per_hour"`
		MaxPerDay  int  `bson:"max_per_day"`
	} `bson:"max_frequency"`
	Digest struct {
		Enabled   bool   `bson:"enabled"`
		Frequency string `bson:"frequency"`
		Time      string `bson:"time"`
	} `bson:"digest"`
	Advanced struct {
		SmartGrouping          bool    `bson:"smart_grouping"`
		RelevanceThreshold     float64 `bson:"relevance_threshold"`
		CrossModuleIntegration bool    `bson:"cross_module_integration"`
	} `bson:"advanced"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toPreferencesDocument(p *common.NotificationPreferences) *preferencesDocument {
	d := &preferencesDocument{UserID: p.UserID, UpdatedAt: p.UpdatedAt}
	d.Channels.Push = p.Channels.Push
	d.Channels.Email = p.Channels.Email
	d.Channels.SMS = p.Channels.SMS
	d.Channels.InApp = p.Channels.InApp

	d.Types = make(map[string]typePreferenceDocument, len(p.Types))
	for t, tp := range p.Types {
		channels := make([]string, len(tp.Channels))
		for i, ch := range tp.Channels {
			channels[i] = string(ch)
		}
		d.Types[string(t)] = typePreferenceDocument{Enabled: tp.Enabled, Channels: channels, Priority: string(tp.Priority)}
	}

	qh := p.Timing.QuietHours
	d.QuietHours.Enabled, d.QuietHours.Start, d.QuietHours.End, d.QuietHours.Timezone = qh.Enabled, qh.Start, qh.End, qh.Timezone
	mf := p.Timing.MaxFrequency
	d.MaxFrequency.Enabled, d.MaxFrequency.MaxPerHour, d.MaxFrequency.MaxPerDay = mf.Enabled, mf.MaxPerHour, mf.MaxPerDay
	dg := p.Timing.Digest
	d.Digest.Enabled, d.Digest.Frequency, d.Digest.Time = dg.Enabled, string(dg.Frequency), dg.Time

	d.Advanced.SmartGrouping = p.Advanced.SmartGrouping
	d.Advanced.RelevanceThreshold = p.Advanced.RelevanceThreshold
	d.Advanced.CrossModuleIntegration = p.Advanced.CrossModuleIntegration
	return d
}

func (d *preferencesDocument) toPreferences() *common.NotificationPreferences {
	p := &common.NotificationPreferences{
		UserID: d.UserID,
		Channels: common.ChannelSettings{
			Push: d.Channels.Push, Email: d.Channels.Email, SMS: d.Channels.SMS, InApp: d.Channels.InApp,
		},
		Types: make(map[common.NotificationType]common.TypePreference, len(d.Types)),
		Timing: common.Timing{
			QuietHours: common.QuietHours{
				Enabled: d.QuietHours.Enabled, Start: d.QuietHours.Start, End: d.QuietHours.End, Timezone: d.QuietHours.Timezone,
			},
			MaxFrequency: common.MaxFrequency{
				Enabled: d.MaxFrequency.Enabled, MaxPerHour: d.MaxFrequency.MaxPerHour, MaxPerDay: d.MaxFrequency.MaxPerDay,
			},
			Digest: common.DigestSettings{
				Enabled: d.Digest.Enabled, Frequency: common.DigestFrequency(d.Digest.Frequency), Time: d.Digest.Time,
			},
		},
		Advanced: common.AdvancedSettings{
			SmartGrouping:          d.Advanced.SmartGrouping,
			RelevanceThreshold:     d.Advanced.RelevanceThreshold,
			CrossModuleIntegration: d.Advanced.CrossModuleIntegration,
		},
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for t, tp := range d.Types {
		channels := make([]common.Channel, len(tp.Channels))
		for i, ch := range tp.Channels {
			channels[i] = common.Channel(ch)
		}
		p.Types[common.NotificationType(t)] = common.TypePreference{
			Enabled: tp.Enabled, Channels: channels, Priority: common.Priority(tp.Priority),
		}
	}
	return p
}

type PreferenceStore struct {
	coll *mongo.Collection
}

func NewPreferenceStore(mc *MongoClient) *PreferenceStore {
	return &PreferenceStore{coll: mc.Database.Collection(preferencesCollection)}
}

func (s *PreferenceStore) Get(ctx context.Context, userID string) (*common.NotificationPreferences, error) {
	var doc preferencesDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("preferences for %s: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return doc.toPreferences(), nil
}

// Insert writes p only if the user has no document yet. Two first-use
// requests racing each other both end up with the same stored defaults.
func (s *PreferenceStore) Insert(ctx context.Context, p *common.NotificationPreferences) (*common.NotificationPreferences, error) {
	doc := toPreferencesDocument(p)
	doc.UserID = ""
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored preferencesDocument
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": p.UserID}, bson.M{"$setOnInsert": doc}, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to insert preferences: %w", err)
	}
	return stored.toPreferences(), nil
}

func (s *PreferenceStore) Save(ctx context.Context, p *common.NotificationPreferences) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.UserID}, toPreferencesDocument(p), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
