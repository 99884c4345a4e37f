package common

import (
	"fmt"
	"time"
)

type DigestFrequency string

const (
	DigestDaily   DigestFrequency = "daily"
	DigestWeekly  DigestFrequency = "weekly"
	DigestMonthly DigestFrequency = "monthly"
)

func (f DigestFrequency) IsValid() bool {
	return f == DigestDaily || f == DigestWeekly || f == DigestMonthly
}

type ChannelSettings struct {
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	InApp bool `json:"inApp"`
}

// Enabled reports whether the channel is switched on globally.
func (c ChannelSettings) Enabled(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return c.Push
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	case ChannelInApp:
		return c.InApp
	}
	return false
}

type TypePreference struct {
	Enabled  bool      `json:"enabled"`
	Channels []Channel `json:"channels"`
	Priority Priority  `json:"priority,omitempty"`
}

type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

type MaxFrequency struct {
	Enabled    bool `json:"enabled"`
	MaxPerHour int  `json:"maxPerHour"`
	MaxPerDay  int  `json:"maxPerDay"`
}

type DigestSettings struct {
	Enabled   bool            `json:"enabled"`
	Frequency DigestFrequency `json:"frequency"`
	Time      string          `json:"time"`
}

type Timing struct {
	QuietHours   QuietHours     `json:"quietHours"`
	MaxFrequency MaxFrequency   `json:"maxFrequency"`
	Digest       DigestSettings `json:"digest"`
}

type AdvancedSettings struct {
	SmartGrouping          bool    `json:"smartGrouping"`
	RelevanceThreshold     float64 `json:"relevanceThreshold"`
	CrossModuleIntegration bool    `json:"crossModuleIntegration"`
}

type NotificationPreferences struct {
	UserID    string                              `json:"userId"`
	Channels  ChannelSettings                     `json:"channels"`
	Types     map[NotificationType]TypePreference `json:"types"`
	Timing    Timing                              `json:"timing"`
	Advanced  AdvancedSettings                    `json:"advanced"`
	UpdatedAt time.Time                           `json:"updatedAt"`
}

// DefaultTypePreference is what a user gets for a type they never configured.
// It carries no priority override.
func DefaultTypePreference(t NotificationType) TypePreference {
	channels := []Channel{ChannelPush, ChannelInApp}
	switch t {
	case PaymentReceivedType, JobApprovedType, ConnectionRequestType:
		channels = append(channels, ChannelEmail)
	}
	return TypePreference{Enabled: true, Channels: channels}
}

func DefaultPreferences(userID string) *NotificationPreferences {
	types := make(map[NotificationType]TypePreference, len(notificationModules))
	for t := range notificationModules {
		types[t] = DefaultTypePreference(t)
	}
	return &NotificationPreferences{
		UserID:   userID,
		Channels: ChannelSettings{Push: true, Email: true, SMS: false, InApp: true},
		Types:    types,
		Timing: Timing{
			QuietHours:   QuietHours{Enabled: false, Start: "22:00", End: "08:00", Timezone: "UTC"},
			MaxFrequency: MaxFrequency{Enabled: true, MaxPerHour: 10, MaxPerDay: 50},
			Digest:       DigestSettings{Enabled: false, Frequency: DigestDaily, Time: "09:00"},
		},
		Advanced: AdvancedSettings{
			SmartGrouping:          true,
			RelevanceThreshold:     50,
			CrossModuleIntegration: true,
		},
	}
}

// TypePreference returns the stored setting for t or the default one.
func (p *NotificationPreferences) TypePreference(t NotificationType) TypePreference {
	if tp, ok := p.Types[t]; ok {
		return tp
	}
	return DefaultTypePreference(t)
}

// TypeAllowed reports whether t may be surfaced at all. Cross-module types
// count as disabled while cross-module integration is off.
func (p *NotificationPreferences) TypeAllowed(t NotificationType) bool {
	if !p.TypePreference(t).Enabled {
		return false
	}
	return !t.IsCrossModule() || p.Advanced.CrossModuleIntegration
}

// DeliveryChannels is the type's channel list narrowed to the globally
// enabled channels. It is empty when the type is not allowed.
func (p *NotificationPreferences) DeliveryChannels(t NotificationType) []Channel {
	if !p.TypeAllowed(t) {
		return nil
	}
	tp := p.TypePreference(t)
	channels := make([]Channel, 0, len(tp.Channels))
	for _, ch := range tp.Channels {
		if p.Channels.Enabled(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}

// Validate checks a preferences document submitted by its owner.
func (p *NotificationPreferences) Validate() error {
	for t, tp := range p.Types {
		if !t.IsValid() {
			return fmt.Errorf("%w: unknown type %q", ErrInvalidPreferences, t)
		}
		for _, ch := range tp.Channels {
			if !ch.IsValid() {
				return fmt.Errorf("%w: unknown channel %q for %s", ErrInvalidPreferences, ch, t)
			}
		}
		if tp.Priority != "" && !tp.Priority.IsValid() {
			return fmt.Errorf("%w: unknown priority %q for %s", ErrInvalidPreferences, tp.Priority, t)
		}
	}

	qh := p.Timing.QuietHours
	if err := ValidateTimeOfDay(qh.Start); err != nil {
		return fmt.Errorf("%w: quiet hours start: %v", ErrInvalidPreferences, err)
	}
	if err := ValidateTimeOfDay(qh.End); err != nil {
		return fmt.Errorf("%w: quiet hours end: %v", ErrInvalidPreferences, err)
	}
	if err := ValidateTimezone(qh.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}

	mf := p.Timing.MaxFrequency
	if mf.Enabled && (mf.MaxPerHour < 1 || mf.MaxPerDay < 1) {
		return fmt.Errorf("%w: frequency caps must be at least 1", ErrInvalidPreferences)
	}

	d := p.Timing.Digest
	if !d.Frequency.IsValid() {
		return fmt.Errorf("%w: digest frequency %q", ErrInvalidPreferences, d.Frequency)
	}
	if err := ValidateTimeOfDay(d.Time); err != nil {
		return fmt.Errorf("%w: digest time: %v", ErrInvalidPreferences, err)
	}

	if p.Advanced.RelevanceThreshold < 0 || p.Advanced.RelevanceThreshold > 100 {
		return fmt.Errorf("%w: relevance threshold must be within 0..100", ErrInvalidPreferences)
	}
	return nil
}
