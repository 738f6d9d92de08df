package middleware

import "sysaura/internal/logger"

// SecurityLogger records authentication and access events.
type SecurityLogger struct {
	log logger.Logger
}

// NewSecurityLogger wraps log. Nil writes with the [SECURITY] prefix.
func NewSecurityLogger(log logger.Logger) *SecurityLogger {
	if log == nil {
		log = logger.New("[SECURITY]")
	}
	return &SecurityLogger{log: log}
}

func (sl *SecurityLogger) LogFailedAuth(ip, reason string) {
	sl.log.Warn("auth failed ip=%s reason=%q", ip, reason)
}

func (sl *SecurityLogger) LogAccessDenied(ip, reason string) {
	sl.log.Warn("access denied ip=%s reason=%q", ip, reason)
}

func (sl *SecurityLogger) LogRateLimited(ip, path string) {
	sl.log.Warn("rate limited ip=%s path=%s", ip, path)
}

func (sl *SecurityLogger) LogWebSocketConnected(ip, userID string) {
	sl.log.Info("ws authenticated user=%s ip=%s", userID, ip)
}

func (sl *SecurityLogger) LogWebSocketDisconnected(ip, clientID string) {
	sl.log.Info("ws closed client=%s ip=%s", clientID, ip)
}
