package challenge

// Kind identifies which upstream surface a captured HAR evidence file
// corresponds to. The set is closed and stable for the process lifetime.
type Kind int

const (
	// KindChat3 is the legacy chat completion surface.
	KindChat3 Kind = iota
	// KindChat4 is the current chat completion surface.
	KindChat4
	// KindAuth is the login/authorization surface.
	KindAuth
	// KindPlatform is the platform API surface.
	KindPlatform
)

// Kinds lists every challenge kind. The evidence registry bootstraps one
// record per entry.
func Kinds() []Kind {
	return []Kind{KindChat3, KindChat4, KindAuth, KindPlatform}
}

// String returns the kind's stable name, used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindChat3:
		return "chat3"
	case KindChat4:
		return "chat4"
	case KindAuth:
		return "auth"
	case KindPlatform:
		return "platform"
	default:
		return "unknown"
	}
}

// DefaultHarFilename returns the fixed filename used for this kind's
// evidence file when no explicit path is configured. The file lives under
// the user's home directory.
func (k Kind) DefaultHarFilename() string {
	switch k {
	case KindChat3:
		return ".chat3.openai.com.har"
	case KindChat4:
		return ".chat4.openai.com.har"
	case KindAuth:
		return ".auth.openai.com.har"
	case KindPlatform:
		return ".platform.openai.com.har"
	default:
		return ".unknown.har"
	}
}
