package server

func (s *session) handleSYST(_ string) {
	s.reply(StatusSystemType, s.server.serverName)
}

func (s *session) handleNOOP(_ string) {
	s.reply(StatusOK, "OK")
}

// helpLines is the HELP reply body.
var helpLines = []string{
	"The following commands are recognized:",
	" USER PASS QUIT SYST NOOP HELP",
	" CWD CDUP PWD MKD RMD DELE RNFR RNTO",
	" LIST RETR STOR APPE STOU TYPE PASV PORT",
	"Help OK",
}

func (s *session) handleHELP(_ string) {
	s.replyLines(StatusHelp, helpLines)
}
