package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomizationVersion is the current shape version of the customization
// record. Older stored versions are migrated forward on scan.
const CustomizationVersion = 2

// Customization is a versioned, explicitly-optional preferences record
// stored as jsonb on the profile row.
type Customization struct {
	Version            int    `json:"version"`
	Theme              string `json:"theme"`
	FontFamily         string `json:"font_family"`
	FontSize           string `json:"font_size"`
	AccentColor        string `json:"accent_color"`
	MessageBubbleStyle string `json:"message_bubble_style"`
}

// DefaultCustomization returns the current-version defaults
func DefaultCustomization() Customization {
	return Customization{
		Version:            CustomizationVersion,
		Theme:              "dark",
		FontFamily:         "Inter",
		FontSize:           "medium",
		AccentColor:        "#6B7280",
		MessageBubbleStyle: "rounded",
	}
}

// migrate fills fields introduced after the stored version and stamps the
// record with the current version. Field-wise: a zero value means the field
// did not exist when the record was written.
func (c *Customization) migrate() {
	defaults := DefaultCustomization()
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
	if c.FontFamily == "" {
		c.FontFamily = defaults.FontFamily
	}
	if c.FontSize == "" {
		c.FontSize = defaults.FontSize
	}
	if c.AccentColor == "" {
		c.AccentColor = defaults.AccentColor
	}
	if c.MessageBubbleStyle == "" {
		c.MessageBubbleStyle = defaults.MessageBubbleStyle
	}
	c.Version = CustomizationVersion
}

func (c *Customization) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*c = DefaultCustomization()
		return nil
	default:
		return fmt.Errorf("unsupported customization column type %T", value)
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return err
	}
	c.migrate()
	return nil
}

func (c Customization) Value() (driver.Value, error) {
	c.Version = CustomizationVersion
	return json.Marshal(c)
}

// Profile is a user's public identity record
type Profile struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      string `gorm:"uniqueIndex;type:text;not null" json:"userId"`
	DisplayName string `gorm:"type:text" json:"displayName"`
	Username    string `gorm:"uniqueIndex;type:text" json:"username"`
	AvatarURL   string `gorm:"type:text" json:"avatarUrl"`
	Bio         string `gorm:"type:text" json:"bio"`

	// Never exposed through the batched lookup (see ProfileView)
	Phone string `gorm:"type:text" json:"-"`

	Customization *Customization `gorm:"type:jsonb" json:"customization,omitempty"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// ProfileView is the restricted projection returned by the batched profile
// lookup. It deliberately excludes phone/contact data and customization.
type ProfileView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl"`
}

// View returns the restricted projection of the profile
func (p *Profile) View() ProfileView {
	return ProfileView{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Username:    p.Username,
		AvatarURL:   p.AvatarURL,
	}
}
