package errors

import "github.com/sirupsen/logrus"

// Entry adds err's code and context to entry when err is an AppError.
func Entry(entry *logrus.Entry, err error) *logrus.Entry {
	appErr, ok := As(err)
	if !ok {
		return entry
	}
	fields := logrus.Fields{"error_code": appErr.Code}
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return entry.WithFields(fields)
}
