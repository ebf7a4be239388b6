package core

import (
	"log"
	"os"
	"strings"
)

const loggerBasePrefix = "ledgerhooks"

// NewLogger returns a stderr logger prefixed with the component name.
func NewLogger(component string) *log.Logger {
	prefix := loggerBasePrefix
	if component = strings.TrimSpace(component); component != "" {
		prefix = prefix + "/" + component
	}
	return log.New(os.Stderr, prefix+" ", log.LstdFlags|log.LUTC)
}

// WithRequestID derives a child logger that tags every line with the request id.
func WithRequestID(logger *log.Logger, requestID string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"request_id="+requestID+" ", logger.Flags())
}
