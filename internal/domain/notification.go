// Package domain defines the core notification pipeline types shared by the
// resolvers, strategies and channel dispatchers.
package domain

import (
	"time"
)

// NotificationType identifies one notification shape. The set is closed:
// the strategy registry refuses records whose type it does not know.
type NotificationType string

const (
	TypeFavorite             NotificationType = "favorite"
	TypeRepost               NotificationType = "repost"
	TypeRepostOfRepost       NotificationType = "repost_of_repost"
	TypeFollow               NotificationType = "follow"
	TypeSave                 NotificationType = "save"
	TypeSaveOfRepost         NotificationType = "save_of_repost"
	TypeMilestone            NotificationType = "milestone"
	TypeTrending             NotificationType = "trending"
	TypeTrendingPlaylist     NotificationType = "trending_playlist"
	TypeTrendingUnderground  NotificationType = "trending_underground"
	TypeTastemaker           NotificationType = "tastemaker"
	TypeUSDCPurchaseSeller   NotificationType = "usdc_purchase_seller"
	TypeUSDCPurchaseBuyer    NotificationType = "usdc_purchase_buyer"
	TypeRequestManager       NotificationType = "request_manager"
	TypeApproveManagerReq    NotificationType = "approve_manager_request"
	TypeCreate               NotificationType = "create"
	TypeRemix                NotificationType = "remix"
	TypeCosign               NotificationType = "cosign"
	TypeChallengeReward      NotificationType = "challenge_reward"
	TypeTrackAddedToPlaylist NotificationType = "track_added_to_playlist"
	TypeTipReceive           NotificationType = "tip_receive"
	TypeReaction             NotificationType = "reaction"
	TypeSupporterRankUp      NotificationType = "supporter_rank_up"
	TypeSupportingRankUp     NotificationType = "supporting_rank_up"
	TypeMessage              NotificationType = "message"
	TypeMessageReaction      NotificationType = "message_reaction"
	TypeComment              NotificationType = "comment"
	TypeCommentThread        NotificationType = "comment_thread"
	TypeCommentMention       NotificationType = "comment_mention"
)

// Channel is one delivery medium.
type Channel string

const (
	ChannelPush    Channel = "push"
	ChannelBrowser Channel = "browser"
	ChannelEmail   Channel = "email"
)

// Payload carries the type-specific fields of a notification record. It is
// stored as jsonb; every strategy reads only the fields its type defines.
type Payload struct {
	// UserIDs are the acting users (initiators), most recent first.
	UserIDs []int64 `json:"user_ids,omitempty"`

	EntityType    EntityType `json:"entity_type,omitempty"`
	EntityID      int64      `json:"entity_id,omitempty"`
	EntityOwnerID int64      `json:"entity_owner_id,omitempty"`

	// Amount/Total are pre-formatted decimal strings (price, tip value).
	Amount string `json:"amount,omitempty"`
	Total  string `json:"total,omitempty"`

	Rank        int    `json:"rank,omitempty"`
	Threshold   int64  `json:"threshold,omitempty"`
	Achievement string `json:"achievement,omitempty"`
	ChallengeID string `json:"challenge_id,omitempty"`

	PlaylistID      int64 `json:"playlist_id,omitempty"`
	PlaylistOwnerID int64 `json:"playlist_owner_id,omitempty"`
	ParentTrackID   int64 `json:"parent_track_id,omitempty"`

	// ReceiverUserID is the original notified user for the comment family,
	// used for possessive pronoun selection.
	ReceiverUserID int64 `json:"receiver_user_id,omitempty"`

	MessageID string `json:"message_id,omitempty"`
}

// NotificationRecord is one persisted notification event. Records are written
// by the upstream generator and immutable here; the orchestrator only flips
// the processed marker.
type NotificationRecord struct {
	ID               string
	Type             NotificationType
	GroupID          string
	CreatedAt        time.Time
	RecipientUserIDs []int64
	Payload          Payload
	Attempts         int
}

// Initiator returns the primary acting user, or 0 when the payload names none.
func (r *NotificationRecord) Initiator() int64 {
	if len(r.Payload.UserIDs) == 0 {
		return 0
	}
	return r.Payload.UserIDs[0]
}

// SkipReason explains why a record was terminally skipped.
type SkipReason string

const (
	SkipUnknownType   SkipReason = "unknown_type"
	SkipMissingEntity SkipReason = "missing_entity"
	SkipNoRecipients  SkipReason = "no_recipients"
	SkipRetryBudget   SkipReason = "retry_budget_exhausted"
)
