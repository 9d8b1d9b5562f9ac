package portal

const ServiceName = "academy-portal"

// Set via -ldflags:
//
//	go build -ldflags="-X 'github.com/alagappainfotech/student-registration-app/internal/portal.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
