package repository

import (
	"time"

	"github.com/walkweek/walkweek/internal/domain"
)

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID               int64   `gorm:"primaryKey;autoIncrement"`
	Name             string  `gorm:"type:varchar(255);not null"`
	PhoneE164        *string `gorm:"type:varchar(20)"`
	PhoneOptedOut    bool    `gorm:"not null;default:0"`
	RemindersEnabled bool    `gorm:"not null;default:0"`
	RemindersWhen    string  `gorm:"type:varchar(10)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// OutboundAuditModel is the persistence model for sms_outbound_audit.
// Append-only: rows are inserted by the dispatcher and pruned only by the
// retention job, never updated.
type OutboundAuditModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
	ToNumber  string    `gorm:"type:varchar(20);not null"`
	Body      string    `gorm:"type:text;not null"`
	HTTPCode  *int      `gorm:"column:http_code"`
	SID       *string   `gorm:"column:sid;type:varchar(64)"`
	Error     *string   `gorm:"type:text"`
}

func (OutboundAuditModel) TableName() string {
	return "sms_outbound_audit"
}

// ReminderLogModel records one sent reminder per user per day.
type ReminderLogModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	UserID     int64  `gorm:"not null"`
	SentOnDate string `gorm:"type:varchar(10);not null"`
	WhenSent   string `gorm:"type:varchar(10);not null"`
	CreatedAt  time.Time
}

func (ReminderLogModel) TableName() string {
	return "reminders_log"
}

// ConsentLogModel records STOP/START consent changes.
type ConsentLogModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"not null"`
	Action      string `gorm:"type:varchar(10);not null"`
	PhoneNumber string `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
}

func (ConsentLogModel) TableName() string {
	return "sms_consent_log"
}

// MessageStatusModel is the persistence model for provider delivery-status
// callbacks, keyed by the provider message SID.
type MessageStatusModel struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement"`
	MessageSID          string `gorm:"column:message_sid;type:varchar(64);not null"`
	MessageStatus       string `gorm:"type:varchar(32)"`
	ToNumber            string `gorm:"type:varchar(20)"`
	FromNumber          string `gorm:"type:varchar(20)"`
	ErrorCode           string `gorm:"type:varchar(16)"`
	ErrorMessage        string `gorm:"type:text"`
	MessagingServiceSID string `gorm:"column:messaging_service_sid;type:varchar(64)"`
	AccountSID          string `gorm:"column:account_sid;type:varchar(64)"`
	APIVersion          string `gorm:"column:api_version;type:varchar(16)"`
	RawPayload          string `gorm:"type:text"`
	ReceivedAtUTC       time.Time
}

func (MessageStatusModel) TableName() string {
	return "message_status"
}

// SettingModel is a string key/value row.
type SettingModel struct {
	Key       string  `gorm:"column:key;primaryKey;type:varchar(255)"`
	Value     *string `gorm:"type:text"`
	UpdatedAt *time.Time
}

func (SettingModel) TableName() string {
	return "settings"
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	phone := ""
	if m.PhoneE164 != nil {
		phone = *m.PhoneE164
	}

	return &domain.User{
		ID:               m.ID,
		Name:             m.Name,
		PhoneE164:        phone,
		PhoneOptedOut:    m.PhoneOptedOut,
		RemindersEnabled: m.RemindersEnabled,
		RemindersWhen:    domain.ReminderWhen(m.RemindersWhen),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func userModelFromDomain(u *domain.User) *UserModel {
	if u == nil {
		return nil
	}

	var phone *string
	if u.PhoneE164 != "" {
		p := u.PhoneE164
		phone = &p
	}

	return &UserModel{
		ID:               u.ID,
		Name:             u.Name,
		PhoneE164:        phone,
		PhoneOptedOut:    u.PhoneOptedOut,
		RemindersEnabled: u.RemindersEnabled,
		RemindersWhen:    string(u.RemindersWhen),
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func auditModelToDomain(m *OutboundAuditModel) *domain.OutboundAudit {
	if m == nil {
		return nil
	}

	return &domain.OutboundAudit{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		ToNumber:    m.ToNumber,
		Body:        m.Body,
		HTTPStatus:  m.HTTPCode,
		ProviderSID: m.SID,
		Error:       m.Error,
	}
}

func auditModelFromDomain(a *domain.OutboundAudit) *OutboundAuditModel {
	if a == nil {
		return nil
	}

	return &OutboundAuditModel{
		ID:        a.ID,
		CreatedAt: a.CreatedAt,
		ToNumber:  a.ToNumber,
		Body:      a.Body,
		HTTPCode:  a.HTTPStatus,
		SID:       a.ProviderSID,
		Error:     a.Error,
	}
}

func statusModelToDomain(m *MessageStatusModel) *domain.DeliveryStatus {
	if m == nil {
		return nil
	}

	return &domain.DeliveryStatus{
		ID:                  m.ID,
		MessageSID:          m.MessageSID,
		MessageStatus:       m.MessageStatus,
		ToNumber:            m.ToNumber,
		FromNumber:          m.FromNumber,
		ErrorCode:           m.ErrorCode,
		ErrorMessage:        m.ErrorMessage,
		MessagingServiceSID: m.MessagingServiceSID,
		AccountSID:          m.AccountSID,
		APIVersion:          m.APIVersion,
		RawPayload:          m.RawPayload,
		ReceivedAtUTC:       m.ReceivedAtUTC,
	}
}

func statusModelFromDomain(s *domain.DeliveryStatus) *MessageStatusModel {
	if s == nil {
		return nil
	}

	return &MessageStatusModel{
		ID:                  s.ID,
		MessageSID:          s.MessageSID,
		MessageStatus:       s.MessageStatus,
		ToNumber:            s.ToNumber,
		FromNumber:          s.FromNumber,
		ErrorCode:           s.ErrorCode,
		ErrorMessage:        s.ErrorMessage,
		MessagingServiceSID: s.MessagingServiceSID,
		AccountSID:          s.AccountSID,
		APIVersion:          s.APIVersion,
		RawPayload:          s.RawPayload,
		ReceivedAtUTC:       s.ReceivedAtUTC,
	}
}
