package gateway

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit limit должен быть положительным
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// NetworkError ошибка транспорта: ответа нет
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError ответ со статусом вне диапазона 2xx
type HTTPError struct {
	Op         string
	Status     int
	StatusText string
	// Message поле error из тела ответа, если оно было
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Status, e.StatusText)
}

// ApplicationError ответ 2xx с семантической ошибкой в поле error
type ApplicationError struct {
	Op      string
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// DecodeError тело ответа не удалось разобрать
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Message сворачивает любую ошибку шлюза в одну строку для пользователя
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		netErr  *NetworkError
		httpErr *HTTPError
		appErr  *ApplicationError
		decErr  *DecodeError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return "Erro na resposta da rede: " + httpErr.StatusText
	case errors.As(err, &netErr):
		return "Falha na conexão com o servidor"
	case errors.As(err, &decErr):
		return "Resposta inválida do servidor"
	case errors.Is(err, ErrInvalidLimit):
		return "Limite inválido"
	default:
		return err.Error()
	}
}

// outcome метка исхода для Prometheus
func outcome(err error) string {
	var (
		netErr  *NetworkError
		httpErr *HTTPError
		appErr  *ApplicationError
		decErr  *DecodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &httpErr):
		return "http"
	case errors.As(err, &appErr):
		return "application"
	case errors.As(err, &decErr):
		return "decode"
	default:
		return "other"
	}
}
