package common

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	ConnectionRequestType     NotificationType = "connection_request"
	ConnectionAcceptedType    NotificationType = "connection_accepted"
	JobApplicationType        NotificationType = "job_application"
	JobApprovedType           NotificationType = "job_approved"
	JobRejectedType           NotificationType = "job_rejected"
	JobMatchType              NotificationType = "job_match"
	MessageType               NotificationType = "message"
	MessageReactionType       NotificationType = "message_reaction"
	VerificationApprovedType  NotificationType = "verification_approved"
	VerificationRejectedType  NotificationType = "verification_rejected"
	PaymentReceivedType       NotificationType = "payment_received"
	PaymentSentType           NotificationType = "payment_sent"
	SystemType                NotificationType = "system"
	CommunityLikeType         NotificationType = "community_like"
	CommunityCommentType      NotificationType = "community_comment"
	CommunityMentionType      NotificationType = "community_mention"
	CrossModuleActivityType   NotificationType = "cross_module_activity"
	GangJobPostType           NotificationType = "gang_job_post"
	CommunityConnectionType   NotificationType = "community_connection"
	JobGangRecommendationType NotificationType = "job_gang_recommendation"
	UnifiedActivitySummary    NotificationType = "unified_activity_summary"
	CrossModuleMentionType    NotificationType = "cross_module_mention"
	HelpfulVoteType           NotificationType = "helpful_vote"
	EndorsementType           NotificationType = "endorsement"
)

// notificationModules maps every known type to the module it originates from.
var notificationModules = map[NotificationType]ContextModule{
	ConnectionRequestType:     ModuleGang,
	ConnectionAcceptedType:    ModuleGang,
	JobApplicationType:        ModuleJobs,
	JobApprovedType:           ModuleJobs,
	JobRejectedType:           ModuleJobs,
	JobMatchType:              ModuleJobs,
	MessageType:               ModuleMessaging,
	MessageReactionType:       ModuleMessaging,
	VerificationApprovedType:  ModuleProfile,
	VerificationRejectedType:  ModuleProfile,
	PaymentReceivedType:       ModuleWallet,
	PaymentSentType:           ModuleWallet,
	SystemType:                ModuleProfile,
	CommunityLikeType:         ModuleCommunity,
	CommunityCommentType:      ModuleCommunity,
	CommunityMentionType:      ModuleCommunity,
	CrossModuleActivityType:   ModuleCommunity,
	GangJobPostType:           ModuleGang,
	CommunityConnectionType:   ModuleCommunity,
	JobGangRecommendationType: ModuleJobs,
	UnifiedActivitySummary:    ModuleProfile,
	CrossModuleMentionType:    ModuleCommunity,
	HelpfulVoteType:           ModuleCommunity,
	EndorsementType:           ModuleProfile,
}

func (t NotificationType) String() string {
	return string(t)
}

func (t NotificationType) IsValid() bool {
	_, ok := notificationModules[t]
	return ok
}

// DefaultModule returns the module a notification of this type belongs to
// when the emitter does not say otherwise.
func (t NotificationType) DefaultModule() ContextModule {
	return notificationModules[t]
}

// IsCrossModule reports whether the type only exists because of
// cross-module integration.
func (t NotificationType) IsCrossModule() bool {
	switch t {
	case CrossModuleActivityType, CrossModuleMentionType, JobGangRecommendationType, UnifiedActivitySummary:
		return true
	}
	return false
}

func ParseNotificationType(s string) (NotificationType, error) {
	t := NotificationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

func AllNotificationTypes() []NotificationType {
	out := make([]NotificationType, 0, len(notificationModules))
	for t := range notificationModules {
		out = append(out, t)
	}
	return out
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string {
	return string(p)
}

func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from low (1) to urgent (4). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

type ContextModule string

const (
	ModuleJobs      ContextModule = "jobs"
	ModuleCommunity ContextModule = "community"
	ModuleGang      ContextModule = "gang"
	ModuleMessaging ContextModule = "messaging"
	ModuleWallet    ContextModule = "wallet"
	ModuleProfile   ContextModule = "profile"
)

func (m ContextModule) IsValid() bool {
	switch m {
	case ModuleJobs, ModuleCommunity, ModuleGang, ModuleMessaging, ModuleWallet, ModuleProfile:
		return true
	}
	return false
}

type EntityType string

const (
	EntityJob         EntityType = "job"
	EntityPost        EntityType = "post"
	EntityMessage     EntityType = "message"
	EntityConnection  EntityType = "connection"
	EntityApplication EntityType = "application"
	EntityTransaction EntityType = "transaction"
)

type ButtonStyle string

const (
	ButtonPrimary   ButtonStyle = "primary"
	ButtonSecondary ButtonStyle = "secondary"
	ButtonDanger    ButtonStyle = "danger"
)

type ActionButton struct {
	Label  string      `json:"label"`
	Action string      `json:"action"`
	URL    string      `json:"url,omitempty"`
	Style  ButtonStyle `json:"style"`
}

// RichMetadata holds the known metadata keys as typed fields. Anything else
// the emitter sends lands in Extensions.
type RichMetadata struct {
	JobTitle        string            `json:"jobTitle,omitempty"`
	CompanyName     string            `json:"companyName,omitempty"`
	PostTitle       string            `json:"postTitle,omitempty"`
	ConnectionName  string            `json:"connectionName,omitempty"`
	Amount          *float64          `json:"amount,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	MatchConfidence *float64          `json:"matchConfidence,omitempty"`
	Extensions      map[string]string `json:"extensions,omitempty"`
}

type RichContent struct {
	Image    string         `json:"image,omitempty"`
	Avatar   string         `json:"avatar,omitempty"`
	Preview  string         `json:"preview,omitempty"`
	Actions  []ActionButton `json:"actions,omitempty"`
	Metadata *RichMetadata  `json:"metadata,omitempty"`
}

type NotificationContext struct {
	Module      ContextModule `json:"module"`
	EntityType  EntityType    `json:"entityType,omitempty"`
	EntityID    string        `json:"entityId,omitempty"`
	EntityTitle string        `json:"entityTitle,omitempty"`
	EntityURL   string        `json:"entityUrl,omitempty"`
}

type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type SmartInfo struct {
	Priority       Priority `json:"priority"`
	RelevanceScore float64  `json:"relevanceScore"`
}

type Interaction struct {
	IsRead      bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	ClickedAt   *time.Time `json:"clickedAt,omitempty"`
	ActionTaken string     `json:"actionTaken,omitempty"`
}

// DeliveryRecord is the routing decision stored with a notification.
type DeliveryRecord struct {
	Channels []Channel `json:"channels,omitempty" bson:"channels,omitempty"`
	Digest   bool      `json:"digest,omitempty" bson:"digest,omitempty"`
}

type Notification struct {
	ID          string               `json:"id"`
	RecipientID string               `json:"recipientId"`
	Type        NotificationType     `json:"type"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	Sender      *Sender              `json:"sender,omitempty"`
	RichContent *RichContent         `json:"richContent,omitempty"`
	Context     *NotificationContext `json:"context,omitempty"`
	Smart       SmartInfo            `json:"smart"`
	Interaction Interaction          `json:"interaction"`
	Delivery    *DeliveryRecord      `json:"delivery,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	ExpiresAt   *time.Time           `json:"expiresAt,omitempty"`
	TimeAgo     string               `json:"timeAgo,omitempty"`
}

// Module returns the context module, falling back to the type's default.
func (n *Notification) Module() ContextModule {
	if n.Context != nil && n.Context.Module != "" {
		return n.Context.Module
	}
	return n.Type.DefaultModule()
}

// NotificationGroup is built per response and never stored.
type NotificationGroup struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Module      ContextModule    `json:"module"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	GroupCount  int              `json:"groupCount"`
	UnreadCount int              `json:"unreadCount"`
	Priority    Priority         `json:"priority"`
	CreatedAt   time.Time        `json:"createdAt"`
	Members     []Notification   `json:"members"`
}

// MemberIDs lists the ids a group read has to fan out to.
func (g *NotificationGroup) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// ListEntry is one row of the notification list: either a plain
// notification or a group.
type ListEntry struct {
	Notification *Notification
	Group        *NotificationGroup
}

func (e ListEntry) CreatedAt() time.Time {
	if e.Group != nil {
		return e.Group.CreatedAt
	}
	return e.Notification.CreatedAt
}

func (e ListEntry) MarshalJSON() ([]byte, error) {
	if e.Group != nil {
		return json.Marshal(struct {
			IsGroup bool `json:"isGroup"`
			*NotificationGroup
		}{true, e.Group})
	}
	return json.Marshal(struct {
		IsGroup bool `json:"isGroup"`
		*Notification
	}{false, e.Notification})
}

func (e *ListEntry) UnmarshalJSON(data []byte) error {
	var kind struct {
		IsGroup bool `json:"isGroup"`
	}
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}
	if kind.IsGroup {
		var g NotificationGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		e.Group = &g
		return nil
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	e.Notification = &n
	return nil
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type NotificationPage struct {
	Notifications []ListEntry `json:"notifications"`
	Pagination    Pagination  `json:"pagination"`
	UnreadCount   int64       `json:"unreadCount"`
}

type NotificationFilter struct {
	UnreadOnly bool
	Type       NotificationType
	Priority   Priority
	Page       int
	Limit      int
}

// Offset converts the one-based page into a skip count.
func (f NotificationFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByType     map[string]int64 `json:"byType"`
	ByPriority map[string]int64 `json:"byPriority"`
	Recent     int64            `json:"recent"`
}

type DigestEntry struct {
	ID             uint64
	UserID         string
	NotificationID string
	Frequency      DigestFrequency
	DueAt          time.Time
	EnqueuedAt     time.Time
	DeliveredAt    *time.Time
	BatchID        string
}
