package notif

import (
	"fmt"

	"talentpulse/internal/common"
)

const (
	baseRelevance       = 50.0
	keyTypeBonus        = 30.0
	connectedBonus      = 20.0
	lowFatigueBonus     = 10.0
	lowFatigueThreshold = 10
	maxVoteBonus        = 20.0
	maxEndorseBonus     = 15.0
)

// ComputeRelevance scores a notification from 0 to 100. recentCount is the
// number of notifications the recipient got in the last 24h, or -1 when it
// is unknown. The score never decreases when an engagement signal grows.
func ComputeRelevance(t common.NotificationType, s Signals, recentCount int64) float64 {
	score := baseRelevance

	switch t {
	case common.PaymentReceivedType, common.JobApprovedType, common.ConnectionRequestType:
		score += keyTypeBonus
	}
	if s.SenderConnected {
		score += connectedBonus
	}
	if s.MatchConfidence != nil {
		score += 0.3 * clamp(*s.MatchConfidence, 0, 100)
	}
	if s.ConnectionStrength != nil {
		score += 0.2 * clamp(*s.ConnectionStrength, 0, 100)
	}
	if s.HelpfulVotes > 0 {
		score += clamp(2*float64(s.HelpfulVotes), 0, maxVoteBonus)
	}
	if s.Endorsements > 0 {
		score += clamp(3*float64(s.Endorsements), 0, maxEndorseBonus)
	}
	if recentCount >= 0 && recentCount < lowFatigueThreshold {
		score += lowFatigueBonus
	}

	return clamp(score, 0, 100)
}

// DerivePriority picks a priority for types with a fixed urgency and falls
// back to the relevance score for everything else.
func DerivePriority(t common.NotificationType, relevance float64) common.Priority {
	switch t {
	case common.PaymentReceivedType, common.VerificationRejectedType:
		return common.PriorityUrgent
	case common.JobApprovedType, common.ConnectionRequestType, common.MessageType:
		return common.PriorityHigh
	case common.JobApplicationType, common.CommunityMentionType, common.ConnectionAcceptedType:
		return common.PriorityMedium
	}

	switch {
	case relevance > 80:
		return common.PriorityHigh
	case relevance > 60:
		return common.PriorityMedium
	default:
		return common.PriorityLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func defaultText(t common.NotificationType) (title, message string) {
	switch t {
	case common.ConnectionRequestType:
		return "New connection request", "Someone wants to connect with you"
	case common.ConnectionAcceptedType:
		return "Connection accepted", "Your connection request was accepted"
	case common.JobApplicationType:
		return "New job application", "A candidate applied to your job"
	case common.JobApprovedType:
		return "Application approved", "Your job application was approved"
	case common.JobRejectedType:
		return "Application update", "Your job application was not selected"
	case common.JobMatchType:
		return "New job match", "We found a job that matches your profile"
	case common.MessageType:
		return "New message", "You have a new message"
	case common.PaymentReceivedType:
		return "Payment received", "A payment was credited to your wallet"
	case common.PaymentSentType:
		return "Payment sent", "Your payment was sent"
	case common.HelpfulVoteType:
		return "Helpful vote", "Someone found your answer helpful"
	case common.EndorsementType:
		return "New endorsement", "Someone endorsed your skills"
	}
	return "New notification", fmt.Sprintf("You have a new %s notification", t)
}

func defaultActions(t common.NotificationType, ctx *common.NotificationContext) []common.ActionButton {
	url := ""
	if ctx != nil {
		url = ctx.EntityURL
	}

	switch t {
	case common.ConnectionRequestType:
		return []common.ActionButton{
			{Label: "Accept", Action: "accept_connection", URL: url, Style: common.ButtonPrimary},
			{Label: "Decline", Action: "decline_connection", URL: url, Style: common.ButtonSecondary},
		}
	case common.JobApplicationType:
		return []common.ActionButton{{Label: "View Application", Action: "view_application", URL: url, Style: common.ButtonPrimary}}
	case common.JobApprovedType, common.JobMatchType:
		return []common.ActionButton{{Label: "View Job", Action: "view_job", URL: url, Style: common.ButtonPrimary}}
	case common.PaymentReceivedType:
		return []common.ActionButton{
			{Label: "View Details", Action: "view_transaction", URL: url, Style: common.ButtonPrimary},
			{Label: "Withdraw", Action: "withdraw", URL: "/wallet/withdraw", Style: common.ButtonSecondary},
		}
	case common.MessageType:
		return []common.ActionButton{{Label: "Reply", Action: "reply", URL: url, Style: common.ButtonPrimary}}
	}
	return nil
}
