package core

import "context"

type contextKey string

const (
	ctxKeyClientIP  contextKey = "import_client_ip"
	ctxKeyUserAgent contextKey = "import_user_agent"
)

// ContextWithClientIP records the address an import was submitted from.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithUserAgent records the submitting client's User-Agent.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// submitter returns log fields identifying who started an import.
func submitter(ctx context.Context) []any {
	var fields []any
	if ip := ClientIPFromContext(ctx); ip != "" {
		fields = append(fields, "client_ip", ip)
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		fields = append(fields, "user_agent", ua)
	}
	return fields
}
