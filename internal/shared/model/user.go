package model

import (
	"regexp"
	"strings"
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleGuide     UserRole = "guide"
	UserRoleLeadGuide UserRole = "lead-guide"
	UserRoleAdmin     UserRole = "admin"
)

// ValidRole 角色是否在枚举范围内
func ValidRole(r UserRole) bool {
	switch r {
	case UserRoleUser, UserRoleGuide, UserRoleLeadGuide, UserRoleAdmin:
		return true
	}
	return false
}

// DefaultUserPhoto 未上传头像时的占位图对象键
const DefaultUserPhoto = "default.jpg"

// User 用户
//
// Password 与重置令牌字段不参与 JSON 序列化，默认读取路径也会把它们投影掉，
// 只有登录/改密路径通过 WithPassword 变体取回哈希。
type User struct {
	ID                   string     `bson:"_id" json:"id"`
	Name                 string     `bson:"name" json:"name"`
	Email                string     `bson:"email" json:"email"`
	Photo                string     `bson:"photo" json:"photo"`
	Role                 UserRole   `bson:"role" json:"role"`
	Password             string     `bson:"password,omitempty" json:"-"`
	PasswordChangedAt    *time.Time `bson:"password_changed_at,omitempty" json:"-"`
	PasswordResetToken   string     `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"password_reset_expires,omitempty" json:"-"`
	Active               bool       `bson:"active" json:"-"`
	CreatedAt            time.Time  `bson:"created_at" json:"created_at"`
}

// UserSummary 嵌入其它资源时的用户摘要（向导列表、评论作者）
type UserSummary struct {
	ID    string   `bson:"_id" json:"id"`
	Name  string   `bson:"name" json:"name"`
	Photo string   `bson:"photo" json:"photo"`
	Role  UserRole `bson:"role" json:"role"`
}

// Summary 返回用户摘要
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo, Role: u.Role}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail 去除首尾空白并转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate 字段校验
func (u *User) Validate() error {
	var msgs []string
	name := strings.TrimSpace(u.Name)
	if name == "" {
		msgs = append(msgs, "A user must have a name")
	} else if len(name) < 5 {
		msgs = append(msgs, "A user name cant be less than 5 characters")
	} else if len(name) > 25 {
		msgs = append(msgs, "A user name cant be more than 25 characters")
	}
	if u.Email == "" {
		msgs = append(msgs, "A user must have an email")
	} else if !emailRegex.MatchString(u.Email) {
		msgs = append(msgs, "invalid email")
	}
	if u.Role != "" && !ValidRole(u.Role) {
		msgs = append(msgs, "Role is either: user, guide, lead-guide or admin")
	}
	return NewValidationError(msgs)
}

// ChangedPasswordAfter 密码是否在令牌签发之后被修改过
//
// issuedAt 为 JWT iat（秒），changed-at 截断到秒后比较。
// 改密时 changed-at 会回拨 1 秒，避免与同一秒内签发的令牌竞争。
func (u *User) ChangedPasswordAfter(issuedAt int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt < u.PasswordChangedAt.Unix()
}
