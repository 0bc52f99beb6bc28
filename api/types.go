package api

// User is the account that owns adventurers. The client holds a read-mostly
// copy fetched during the session check and replaces it wholesale on update.
type User struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	CreatedAt   string       `json:"created_at,omitempty"`
	UpdatedAt   string       `json:"updated_at,omitempty"`
	Adventurers []Adventurer `json:"adventurers,omitempty"`
}

// Adventurer carries the server-computed progression fields alongside the
// stored ones. Required experience for the next level is level * 100.
type Adventurer struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Level                  int      `json:"level"`
	Experience             int      `json:"experience"`
	ExperienceForNextLevel int      `json:"experience_for_next_level"`
	ProgressPercentage     float64  `json:"progress_percentage"`
	CompletedQuestsCount   int      `json:"completed_quests_count"`
	CompletedQuests        []string `json:"completed_quests,omitempty"`
	AdventurerType         string   `json:"adventurer_type,omitempty"`
	UserID                 string   `json:"user_id,omitempty"`
}

type Quest struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ExperienceReward int    `json:"experience_reward"`
	Completed        bool   `json:"completed"`
	AdventurerID     string `json:"adventurer_id"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

const DefaultAdventurerType = "default"

// AdventurerTypes is the accepted set of adventurer type tags.
var AdventurerTypes = []string{
	DefaultAdventurerType,
	"Amazon",
	"Barbarian",
	"Paladin",
	"Sorceress",
	"Necromancer",
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the OAuth2-style token exchange result. The user is not
// embedded; callers follow up with GET /auth/me.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        *User  `json:"user,omitempty"`
}

type RegistrationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationResponse is the created user plus the session token minted for
// the fresh account.
type RegistrationResponse struct {
	User
	AuthToken string `json:"auth_token,omitempty"`
}

// UserUpdate holds the changed fields of a partial profile update. Nil
// fields are omitted from the request payload.
type UserUpdate struct {
	Username *string `json:"username,omitempty" structs:"username,omitempty"`
	Email    *string `json:"email,omitempty" structs:"email,omitempty"`
	Password *string `json:"password,omitempty" structs:"password,omitempty"`
}

// UserEnvelope wraps the updated user returned by PUT /user/{id}.
type UserEnvelope struct {
	User    User   `json:"user"`
	Message string `json:"message,omitempty"`
}

type CreateAdventurerRequest struct {
	Name           string `json:"name"`
	UserID         string `json:"user_id"`
	AdventurerType string `json:"adventurer_type"`
}

type CreateQuestRequest struct {
	Title            string `json:"title"`
	ExperienceReward int    `json:"experience_reward"`
	AdventurerID     string `json:"adventurer_id"`
}

// QuestUpdate holds the changed fields of a partial quest update.
type QuestUpdate struct {
	Title            *string `json:"title,omitempty" structs:"title,omitempty"`
	ExperienceReward *int    `json:"experience_reward,omitempty" structs:"experience_reward,omitempty"`
	Completed        *bool   `json:"completed,omitempty" structs:"completed,omitempty"`
}

// QuestCompletionResponse is returned by POST /adventurer/{id}/quest/{questId}.
// The adventurer reflects any experience gain and level-up the server applied.
type QuestCompletionResponse struct {
	Message          string     `json:"message,omitempty"`
	Adventurer       Adventurer `json:"adventurer"`
	WasNewCompletion bool       `json:"was_new_completion"`
	LeveledUp        bool       `json:"leveled_up"`
}

// MessageResponse is the bare acknowledgement some endpoints return,
// e.g. DELETE /quest/{id} and POST /auth/logout.
type MessageResponse struct {
	Message string `json:"message"`
}
