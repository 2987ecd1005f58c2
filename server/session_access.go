package server

import "fmt"

// handleUSER starts the login sequence.
func (s *session) handleUSER(name string) {
	account, ok := s.server.users.Lookup(name)
	if !ok {
		s.authFailed(name, "unknown_user")
		s.reply(StatusInvalidCredentials, "Invalid Username "+name)
		return
	}

	switch account.Role {
	case RoleNotAllowed:
		s.authFailed(name, "not_allowed")
		s.reply(StatusNotLoggedIn, name+" This user is not allowed")
		return
	case RoleBlocked:
		s.authFailed(name, "blocked")
		s.reply(StatusNotLoggedIn, name+" This user is blocked")
		return
	}

	s.pending = account
	s.state = stateAwaitingPassword
	s.reply(StatusNeedPassword, "Username okay, need password for "+name)
}

// handlePASS runs in stateAwaitingPassword. Any verb other than PASS resets
// the sequence.
func (s *session) handlePASS(cmd, pass string) {
	account := s.pending
	s.pending = Account{}
	s.state = stateUnauthenticated

	if cmd != "PASS" {
		s.reply(StatusSyntaxError, cmd+" not understood")
		return
	}

	if !account.CheckPassword(pass) {
		s.authFailed(account.Name, "invalid_password")
		s.reply(StatusInvalidCredentials, "Invalid Password "+account.Name)
		return
	}

	jail, err := OpenJail(account.RootPath)
	if err != nil {
		s.logger.Error("root_unavailable",
			"user", account.Name,
			"root", account.RootPath,
			"error", err,
		)
		s.reply(StatusNotLoggedIn, fmt.Sprintf("%s home directory unavailable", account.Name))
		return
	}

	s.account = account
	s.jail = jail
	s.cwd = jail.Root()
	s.state = stateAuthenticated

	s.logger.Info("authentication_success", "user", account.Name)
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(true, account.Name)
	}
	s.reply(StatusLoggedIn, "Success Login for "+account.Name)
}

func (s *session) handlePASSWithoutUSER(_ string) {
	s.reply(StatusBadArguments, "PASS Bad Sequence of Commands, send USER first")
}

func (s *session) handleUSERLoggedIn(_ string) {
	s.reply(StatusSyntaxError, "Already logged in")
}

func (s *session) authFailed(name, reason string) {
	s.logger.Warn("authentication_failed",
		"user", name,
		"reason", reason,
	)
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(false, name)
	}
}
