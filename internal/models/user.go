package models

import "time"

// User — участник маркетплейса, идентифицируется номером телефона.
type User struct {
	ID          string    `json:"id" bson:"_id"`
	Phone       string    `json:"mobile" bson:"phone"`
	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email" bson:"email"`
	Role        string    `json:"role" bson:"role"`
	Verified    bool      `json:"verified" bson:"verified"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	LastLoginAt time.Time `json:"last_login_at" bson:"last_login_at"`
}

// PublicUser — поля, которые отдаём клиенту после входа.
type PublicUser struct {
	ID       string `json:"id"`
	Mobile   string `json:"mobile"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Mobile:   u.Phone,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	}
}
