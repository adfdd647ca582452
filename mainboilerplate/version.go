package mainboilerplate

// Version and BuildDate are populated at link time, eg:
//
//	go build -ldflags "-X go.ircservices.dev/core/mainboilerplate.Version=v0.4.1"
var (
	Version   = "development"
	BuildDate = "unknown"
)
