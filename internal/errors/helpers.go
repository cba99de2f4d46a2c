package errors

import "fmt"

// NewValidationError reports bad input; message is shown as is.
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(message)
}

func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Error de configuración")
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Error al acceder a la base de datos")
}

// NewPersistenceError is returned when the local store cannot hold a record.
func NewPersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistence, fmt.Sprintf("local store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Error al guardar el comentario localmente")
}
