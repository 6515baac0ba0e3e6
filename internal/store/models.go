package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Platform identifies a messaging platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformAll       Platform = "all"
)

// ValidPlatform reports whether p is a concrete messaging platform.
func ValidPlatform(p Platform) bool {
	return p == PlatformFacebook || p == PlatformInstagram || p == PlatformWhatsApp
}

// ValidTargetPlatform reports whether p may be used as a campaign target.
func ValidTargetPlatform(p Platform) bool {
	return ValidPlatform(p) || p == PlatformAll
}

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusActive},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted},
	CampaignStatusCompleted: {},
}

// CanTransitionCampaign reports whether from -> to is a legal campaign
// status transition.
func CanTransitionCampaign(from, to CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ChatStatus is the lifecycle state of a conversation thread.
type ChatStatus string

const (
	ChatStatusActive    ChatStatus = "active"
	ChatStatusQualified ChatStatus = "qualified"
	ChatStatusConverted ChatStatus = "converted"
	ChatStatusClosed    ChatStatus = "closed"
	ChatStatusArchived  ChatStatus = "archived"
)

var chatTransitions = map[ChatStatus][]ChatStatus{
	ChatStatusActive:    {ChatStatusQualified, ChatStatusConverted, ChatStatusClosed, ChatStatusArchived},
	ChatStatusQualified: {ChatStatusConverted, ChatStatusClosed, ChatStatusArchived},
	ChatStatusConverted: {ChatStatusClosed, ChatStatusArchived},
	ChatStatusClosed:    {ChatStatusArchived},
	ChatStatusArchived:  {},
}

// CanTransitionChat reports whether from -> to is a legal chat status
// transition.
func CanTransitionChat(from, to ChatStatus) bool {
	for _, next := range chatTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IntegrationStatus is the connection state of a platform integration.
type IntegrationStatus string

const (
	IntegrationStatusConnected    IntegrationStatus = "connected"
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
	IntegrationStatusError        IntegrationStatus = "error"
	IntegrationStatusPending      IntegrationStatus = "pending"
)

// Message senders.
const (
	MessageSenderCustomer = "customer"
	MessageSenderAI       = "ai"
	MessageSenderBusiness = "business"
)

// Message types.
const (
	MessageTypeText       = "text"
	MessageTypeImage      = "image"
	MessageTypeFile       = "file"
	MessageTypeQuickReply = "quick_reply"
)

// ValidMessageType reports whether t is a supported message type.
func ValidMessageType(t string) bool {
	return t == MessageTypeText || t == MessageTypeImage || t == MessageTypeFile || t == MessageTypeQuickReply
}

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}
	result := make(JSONB)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*j = result
	return nil
}

func jsonbBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("incompatible type for JSONB")
	}
}

// Product describes what a campaign sells.
type Product struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Images      []string `json:"images,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// Value implements the driver.Valuer interface for Product
func (p Product) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for Product
func (p *Product) Scan(value interface{}) error {
	return scanJSON(value, p, "Product")
}

// ObjectionResponse is a scripted answer to a known customer objection.
type ObjectionResponse struct {
	Objection string `json:"objection"`
	Response  string `json:"response"`
}

// ChatFlow is a campaign's scripted conversation outline.
type ChatFlow struct {
	Greeting               string              `json:"greeting,omitempty"`
	QualificationQuestions []string            `json:"qualification_questions,omitempty"`
	ObjectionHandling      []ObjectionResponse `json:"objection_handling,omitempty"`
	ClosingMessage         string              `json:"closing_message,omitempty"`
}

// Value implements the driver.Valuer interface for ChatFlow
func (f ChatFlow) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for ChatFlow
func (f *ChatFlow) Scan(value interface{}) error {
	return scanJSON(value, f, "ChatFlow")
}

// Demographics narrows a campaign's audience.
type Demographics struct {
	AgeRange  string   `json:"age_range,omitempty"`
	Location  []string `json:"location,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// TargetAudience describes who a campaign is aimed at.
type TargetAudience struct {
	Demographics Demographics `json:"demographics,omitempty"`
	Persona      string       `json:"persona,omitempty"`
}

// Value implements the driver.Valuer interface for TargetAudience
func (t TargetAudience) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for TargetAudience
func (t *TargetAudience) Scan(value interface{}) error {
	return scanJSON(value, t, "TargetAudience")
}

// CustomerProfile holds best-effort platform profile data for a chat.
type CustomerProfile struct {
	ProfilePic string `json:"profile_pic,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Value implements the driver.Valuer interface for CustomerProfile
func (p CustomerProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for CustomerProfile
func (p *CustomerProfile) Scan(value interface{}) error {
	return scanJSON(value, p, "CustomerProfile")
}

// HourlySlot is one hour of a day's analytics breakdown.
type HourlySlot struct {
	Hour          int `json:"hour"`
	Messages      int `json:"messages"`
	Conversations int `json:"conversations"`
	Conversions   int `json:"conversions"`
}

// HourlySlots is the fixed 24-slot hourly breakdown of an analytics day.
type HourlySlots []HourlySlot

// EmptyHourlySlots returns a zeroed 24-slot breakdown.
func EmptyHourlySlots() HourlySlots {
	slots := make(HourlySlots, 24)
	for i := range slots {
		slots[i].Hour = i
	}
	return slots
}

// Value implements the driver.Valuer interface for HourlySlots
func (h HourlySlots) Value() (driver.Value, error) {
	if h == nil {
		h = EmptyHourlySlots()
	}
	return json.Marshal(h)
}

// Scan implements the sql.Scanner interface for HourlySlots
func (h *HourlySlots) Scan(value interface{}) error {
	return scanJSON(value, h, "HourlySlots")
}

func scanJSON(value, dest interface{}, typeName string) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonbBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported type for %s", typeName)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}
