package models

import (
	"fmt"
	"regexp"
	"strings"
)

// RoleAdmin роль, которой доступен экран управления пользователями
const RoleAdmin = "Administrador"

// User пользователь upstream API
type User struct {
	ID     int    `json:"id"`
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	Funcao string `json:"funcao"`
	Status string `json:"status"`
}

// IsAdmin сообщает, может ли пользователь управлять пользователями
func (u User) IsAdmin() bool {
	return u.Funcao == RoleAdmin
}

// LoginRequest тело POST /login
type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// LoginResponse тело ответа POST /login
type LoginResponse struct {
	User  *User  `json:"user,omitempty"`
	Error string `json:"error,omitempty"`
}

// UserInput тело создания и изменения пользователя
type UserInput struct {
	Nome           string `json:"nome"`
	Email          string `json:"email"`
	Funcao         string `json:"funcao"`
	Status         string `json:"status"`
	Senha          string `json:"senha,omitempty"`
	ConfirmarSenha string `json:"confirmarSenha,omitempty"`
}

// UserPayload тело, которое уходит в upstream: подтверждение пароля остается у нас
type UserPayload struct {
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	Funcao string `json:"funcao"`
	Status string `json:"status"`
	Senha  string `json:"senha,omitempty"`
}

// Payload тело запроса к upstream; пустой пароль не отправляется
func (in UserInput) Payload() UserPayload {
	return UserPayload{
		Nome:   in.Nome,
		Email:  in.Email,
		Funcao: in.Funcao,
		Status: in.Status,
		Senha:  in.Senha,
	}
}

// ValidationError ошибка проверки конкретного поля формы
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Normalize обрезает пробелы и подставляет значения по умолчанию
func (in *UserInput) Normalize() {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.TrimSpace(in.Email)
	in.Senha = strings.TrimSpace(in.Senha)
	in.ConfirmarSenha = strings.TrimSpace(in.ConfirmarSenha)
	if in.Funcao == "" {
		in.Funcao = "Operador"
	}
	if in.Status == "" {
		in.Status = "Ativo"
	}
}

// Validate проверяет форму; пароль обязателен только при создании
func (in UserInput) Validate(create bool) error {
	if in.Nome == "" {
		return &ValidationError{Field: "nome", Message: "name is required"}
	}
	if in.Email == "" || !emailPattern.MatchString(in.Email) {
		return &ValidationError{Field: "email", Message: "a valid email is required"}
	}
	if create && in.Senha == "" {
		return &ValidationError{Field: "senha", Message: "password is required"}
	}
	if in.Senha != "" && in.Senha != in.ConfirmarSenha {
		return &ValidationError{Field: "confirmarSenha", Message: "passwords do not match"}
	}
	return nil
}
