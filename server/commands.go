package server

// Predefined command groups for use with WithDisableCommands.
//
// Example, a read-only server:
//
//	srv, _ := server.NewServer(":2121",
//	    server.WithUsers(users),
//	    server.WithDisableCommands(server.WriteCommands...),
//	)
var (
	// LegacyCommands are the RFC 775 X* aliases.
	LegacyCommands = []string{"XCWD", "XCUP", "XPWD", "XMKD", "XRMD"}

	// ActiveModeCommands open data connections from the server side.
	ActiveModeCommands = []string{"PORT"}

	// WriteCommands modify the filesystem.
	WriteCommands = []string{
		"STOR",
		"APPE",
		"STOU",
		"DELE",
		"RMD",
		"XRMD",
		"MKD",
		"XMKD",
		"RNFR",
		"RNTO",
	}
)
