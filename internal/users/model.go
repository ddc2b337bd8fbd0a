package users

import (
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierIndividual Tier = "individual"
	TierHyperium   Tier = "hyperium"
)

type Subscription struct {
	Tier Tier `json:"tier" validate:"required,oneof=free individual hyperium"`
}

type Socials struct {
	X      string `json:"x,omitempty"`
	TG     string `json:"tg,omitempty"`
	YT     string `json:"yt,omitempty"`
	TikTok string `json:"tiktok,omitempty"`
	IG     string `json:"ig,omitempty"`
}

// DiscordToken is the OAuth grant stored for a user. It is never rendered
// in API output.
type DiscordToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// User is the persisted record. DiscordID is the optional secondary
// identifier; when set it is unique across all records.
type User struct {
	ID              string
	DiscordID       string
	DiscordUsername string
	AvatarURL       string
	WalletAddress   string
	Points          int64
	CardImageURL    string
	Subscription    Subscription
	Status          Status
	Roles           []string
	Socials         Socials
	MintWallets     map[string]string
	DiscordToken    DiscordToken
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastActive      *time.Time
}

// CreateInput is the body accepted when creating a user.
type CreateInput struct {
	DiscordID             string            `json:"discordId" validate:"max=64"`
	DiscordUsername       string            `json:"discordUsername" validate:"required,max=100"`
	AvatarURL             string            `json:"discordUserAvatarURL" validate:"max=2048"`
	WalletAddress         string            `json:"walletAddress" validate:"max=256"`
	Points                int64             `json:"hyperBlockPoints"`
	Subscription          *Subscription     `json:"subscription"`
	Status                Status            `json:"userGlobalStatus" validate:"omitempty,oneof=active inactive banned"`
	Roles                 []string          `json:"roles" validate:"dive,required,max=64"`
	Socials               *Socials          `json:"socials"`
	MintWallets           map[string]string `json:"mintWallets" validate:"dive,keys,required,endkeys"`
	DiscordAccessToken    string            `json:"discord_access_token"`
	DiscordRefreshToken   string            `json:"discord_refresh_token"`
	DiscordTokenExpiresAt *time.Time        `json:"discord_token_expires_at"`
}

// UpdateInput is a partial update: nil fields are left untouched. The
// secondary identifier cannot be changed once assigned.
type UpdateInput struct {
	DiscordUsername       *string           `json:"discordUsername" validate:"omitnil,min=1,max=100"`
	AvatarURL             *string           `json:"discordUserAvatarURL" validate:"omitnil,max=2048"`
	WalletAddress         *string           `json:"walletAddress" validate:"omitnil,max=256"`
	CardImageURL          *string           `json:"cardImageUrl" validate:"omitnil,max=2048"`
	Points                *int64            `json:"hyperBlockPoints"`
	Subscription          *Subscription     `json:"subscription"`
	Status                *Status           `json:"userGlobalStatus" validate:"omitnil,oneof=active inactive banned"`
	Roles                 []string          `json:"roles" validate:"omitempty,dive,required,max=64"`
	Socials               *Socials          `json:"socials"`
	MintWallets           map[string]string `json:"mintWallets" validate:"omitempty,dive,keys,required,endkeys"`
	LastActive            *time.Time        `json:"lastActive"`
	DiscordAccessToken    *string           `json:"discord_access_token"`
	DiscordRefreshToken   *string           `json:"discord_refresh_token"`
	DiscordTokenExpiresAt *time.Time        `json:"discord_token_expires_at"`
}

// View is the API representation of a User.
type View struct {
	ID              string            `json:"id"`
	DiscordID       string            `json:"discordId,omitempty"`
	DiscordUsername string            `json:"discordUsername"`
	AvatarURL       string            `json:"discordUserAvatarURL,omitempty"`
	WalletAddress   string            `json:"walletAddress,omitempty"`
	Points          int64             `json:"hyperBlockPoints"`
	CardImageURL    string            `json:"cardImageUrl,omitempty"`
	Subscription    Subscription      `json:"subscription"`
	Status          Status            `json:"userGlobalStatus"`
	Roles           []string          `json:"roles"`
	Socials         Socials           `json:"socials"`
	MintWallets     map[string]string `json:"mintWallets,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	LastActive      *time.Time        `json:"lastActive,omitempty"`
}

func NewView(u User) View {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return View{
		ID:              u.ID,
		DiscordID:       u.DiscordID,
		DiscordUsername: u.DiscordUsername,
		AvatarURL:       u.AvatarURL,
		WalletAddress:   u.WalletAddress,
		Points:          u.Points,
		CardImageURL:    u.CardImageURL,
		Subscription:    u.Subscription,
		Status:          u.Status,
		Roles:           roles,
		Socials:         u.Socials,
		MintWallets:     u.MintWallets,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		LastActive:      u.LastActive,
	}
}

func NewViews(us []User) []View {
	out := make([]View, 0, len(us))
	for _, u := range us {
		out = append(out, NewView(u))
	}
	return out
}

// ListResult is one page of users plus the number of records matching the
// filter across all pages.
type ListResult struct {
	Total int    `json:"total"`
	Users []View `json:"users"`
}

// newUser builds the record a store persists for in, filling defaults.
func newUser(id string, in CreateInput, now time.Time) User {
	u := User{
		ID:              id,
		DiscordID:       in.DiscordID,
		DiscordUsername: in.DiscordUsername,
		AvatarURL:       in.AvatarURL,
		WalletAddress:   in.WalletAddress,
		Points:          in.Points,
		Subscription:    Subscription{Tier: TierFree},
		Status:          in.Status,
		Roles:           append([]string{}, in.Roles...),
		MintWallets:     copyMap(in.MintWallets),
		DiscordToken: DiscordToken{
			AccessToken:  in.DiscordAccessToken,
			RefreshToken: in.DiscordRefreshToken,
			ExpiresAt:    in.DiscordTokenExpiresAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Subscription != nil {
		u.Subscription = *in.Subscription
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	if in.Socials != nil {
		u.Socials = *in.Socials
	}
	return u
}

// IsEmpty reports whether the update carries no field at all.
func (in UpdateInput) IsEmpty() bool {
	return in.DiscordUsername == nil && in.AvatarURL == nil && in.WalletAddress == nil &&
		in.CardImageURL == nil && in.Points == nil && in.Subscription == nil &&
		in.Status == nil && in.Roles == nil && in.Socials == nil && in.MintWallets == nil &&
		in.LastActive == nil && in.DiscordAccessToken == nil && in.DiscordRefreshToken == nil &&
		in.DiscordTokenExpiresAt == nil
}

// Apply copies the supplied fields onto u. UpdatedAt is left to the caller.
func (in UpdateInput) Apply(u *User) {
	if in.DiscordUsername != nil {
		u.DiscordUsername = *in.DiscordUsername
	}
	if in.AvatarURL != nil {
		u.AvatarURL = *in.AvatarURL
	}
	if in.WalletAddress != nil {
		u.WalletAddress = *in.WalletAddress
	}
	if in.CardImageURL != nil {
		u.CardImageURL = *in.CardImageURL
	}
	if in.Points != nil {
		u.Points = *in.Points
	}
	if in.Subscription != nil {
		u.Subscription = *in.Subscription
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if in.Roles != nil {
		u.Roles = append([]string{}, in.Roles...)
	}
	if in.Socials != nil {
		u.Socials = *in.Socials
	}
	if in.MintWallets != nil {
		u.MintWallets = copyMap(in.MintWallets)
	}
	if in.LastActive != nil {
		t := *in.LastActive
		u.LastActive = &t
	}
	if in.DiscordAccessToken != nil {
		u.DiscordToken.AccessToken = *in.DiscordAccessToken
	}
	if in.DiscordRefreshToken != nil {
		u.DiscordToken.RefreshToken = *in.DiscordRefreshToken
	}
	if in.DiscordTokenExpiresAt != nil {
		t := *in.DiscordTokenExpiresAt
		u.DiscordToken.ExpiresAt = &t
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
