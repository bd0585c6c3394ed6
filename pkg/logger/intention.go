package logger

// Intention tags what a log line is about, independent of its level.
// The console handler maps it to an icon; file logs keep it as a key.
type Intention string

const (
	IntentionConnection Intention = "connection"
	IntentionCommand    Intention = "command"
	IntentionMedia      Intention = "media"
	IntentionAI         Intention = "ai"
	IntentionStatus     Intention = "status"
	IntentionSuccess    Intention = "success"
	IntentionConfig     Intention = "config"
	IntentionCancel     Intention = "cancel"
	IntentionDebug      Intention = "debug"
)

// iconFor returns the console prefix for an intention.
func iconFor(i Intention) string {
	switch i {
	case IntentionConnection:
		return "🌐"
	case IntentionCommand:
		return "➤"
	case IntentionMedia:
		return "🎞️"
	case IntentionAI:
		return "🧠"
	case IntentionStatus:
		return "ℹ️"
	case IntentionSuccess:
		return "✅"
	case IntentionConfig:
		return "⚙️"
	case IntentionCancel:
		return "🛑"
	case IntentionDebug:
		return "🛠️"
	default:
		return "•"
	}
}
