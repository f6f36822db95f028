package api

import (
	"time"

	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Auth Request/Response Types
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// IdentityRequest exchanges a platform identity token for a session.
type IdentityRequest struct {
	Provider string `json:"provider" validate:"required"`
	IDToken  string `json:"idToken" validate:"required"`
	Nonce    string `json:"nonce"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"max=50"`
}

// Session is returned by every sign-in endpoint.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	User         User   `json:"user"`
}

type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	Email          string `json:"email,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	Bio            string `json:"bio,omitempty"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
}

func (u User) ItemID() string { return u.ID }

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type Place struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Category  string  `json:"category,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Rating    float64 `json:"rating"`
}

func (p Place) ItemID() string { return p.ID }

// Activity kinds.
const (
	KindCheckin = "checkin"
	KindReview  = "review"
)

// Reaction is one emoji reaction on an activity.
type Reaction struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activityId"`
	UserID     string    `json:"userId"`
	Emoji      string    `json:"emoji"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r Reaction) ItemID() string { return r.ID }

// FeedItem is an activity in the social feed: a check-in or a review.
type FeedItem struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Actor        User       `json:"actor"`
	Place        *Place     `json:"place,omitempty"`
	Text         string     `json:"text,omitempty"`
	Rating       int        `json:"rating,omitempty"`
	Reactions    []Reaction `json:"reactions"`
	CommentCount int        `json:"commentCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (f FeedItem) ItemID() string { return f.ID }

// ReactionCounts tallies reactions by emoji.
// Confirmed returns f without reactions that are still being sent.
func (f FeedItem) Confirmed() FeedItem {
	kept := make([]Reaction, 0, len(f.Reactions))
	for _, r := range f.Reactions {
		if !paging.IsPlaceholder(r.ID) {
			kept = append(kept, r)
		}
	}
	if len(kept) < len(f.Reactions) {
		f.Reactions = kept
	}
	return f
}

func (f FeedItem) ReactionCounts() map[string]int {
	counts := make(map[string]int)
	for _, r := range f.Reactions {
		counts[r.Emoji]++
	}
	return counts
}

// FindReaction returns userID's reaction with emoji, if any.
func (f FeedItem) FindReaction(userID, emoji string) (Reaction, bool) {
	for _, r := range f.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return r, true
		}
	}
	return Reaction{}, false
}

type Comment struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activityId"`
	Author     User      `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c Comment) ItemID() string { return c.ID }

type Review struct {
	ID        string    `json:"id"`
	PlaceID   string    `json:"placeId"`
	Author    User      `json:"author"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	LikeCount int       `json:"likeCount"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r Review) ItemID() string { return r.ID }

type Checkin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Place     Place     `json:"place"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Checkin) ItemID() string { return c.ID }

type Notification struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Actor      User      `json:"actor"`
	ActivityID string    `json:"activityId,omitempty"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (n Notification) ItemID() string { return n.ID }

// Connection is a user seen from the viewer: a follower or a followee.
type Connection struct {
	User      User `json:"user"`
	Following bool `json:"following"`
	FollowsMe bool `json:"followsMe"`
}

func (c Connection) ItemID() string { return c.User.ID }

// PlaceList is a user-curated list of places.
type PlaceList struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PlaceCount  int       `json:"placeCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (l PlaceList) ItemID() string { return l.ID }

type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Participants  []User    `json:"participants"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

func (c Conversation) ItemID() string { return c.ID }

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	AuthorID       string     `json:"authorId"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"createdAt"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
}

func (m Message) ItemID() string { return m.ID }
