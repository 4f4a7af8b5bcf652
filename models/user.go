package models

// UserRole - роль из JWT claims. Пользователи выдаются внешней системой.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RoleReferee   UserRole = "referee"
)
