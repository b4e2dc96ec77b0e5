package models

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is a rider or driver. Accounts are created on first wallet connect or
// on email sign-up and are never hard-deleted.
type User struct {
	gorm.Model
	WalletAddress *string `json:"walletAddress,omitempty" gorm:"column:wallet_address;uniqueIndex"`
	Email         *string `json:"email,omitempty" gorm:"column:email;uniqueIndex"`
	Password      string  `json:"-" gorm:"-"`
	PasswordHash  string  `json:"-" gorm:"column:password_hash"`
	Name          string  `json:"name" gorm:"column:name"`
	Phone         string  `json:"phone,omitempty" gorm:"column:phone"`
	Bio           string  `json:"bio,omitempty" gorm:"column:bio"`
	AvatarURL     string  `json:"avatarUrl,omitempty" gorm:"column:avatar_url"`
	IsDriver      bool    `json:"isDriver" gorm:"column:is_driver;not null;default:false"`
	IsVerified    bool    `json:"isVerified" gorm:"column:is_verified;not null;default:false"`
	Rating        float64 `json:"rating" gorm:"column:rating;not null;default:0"`
	ReviewCount   int     `json:"reviewCount" gorm:"column:review_count;not null;default:0"`
	FCMToken      string  `json:"-" gorm:"column:fcm_token"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// NormalizeAddress lower-cases a hex wallet address so lookups are case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Address returns the wallet address or an empty string for email-only accounts.
func (u *User) Address() string {
	if u.WalletAddress == nil {
		return ""
	}
	return *u.WalletAddress
}

// IsVerifiedDriver reports whether the user may appear in verified-only searches.
func (u *User) IsVerifiedDriver() bool {
	return u.IsDriver && u.IsVerified
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	u.Password = ""
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
