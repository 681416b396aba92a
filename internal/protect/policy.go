package protect

// DefaultPatterns are glob patterns refused out of the box. The engine's
// own data directory is always protected from its tools.
var DefaultPatterns = []string{
	"**/.foreman/**",
	"**/.ssh/**",
	"**/.git/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
	"**/keys/**",
}

// DefaultKeywords are substrings that mark a path as protected.
var DefaultKeywords = []string{
	"password",
	"secret",
	"token",
	"credential",
	"private_key",
	"id_rsa",
}

// DefaultFileTypes are extensions refused out of the box.
var DefaultFileTypes = []string{
	".pem",
	".key",
	".env",
	".p12",
	".pfx",
	".crt",
	".cer",
	".keystore",
}
