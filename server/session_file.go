package server

import "errors"

// handleCWD changes the working directory. A target above the root leaves
// the directory unchanged and still succeeds.
func (s *session) handleCWD(arg string) {
	target, err := s.jail.Resolve(s.cwd, arg)
	if errors.Is(err, ErrOutsideRoot) {
		s.logger.Warn("path_escape_attempt", "user", s.account.Name, "cmd", "CWD", "arg", arg)
		s.reply(StatusFileActionOK, "CWD Command Success")
		return
	}

	info, err := s.jail.Stat(target)
	if err != nil || !info.IsDir() {
		s.reply(StatusFileUnavailable, arg+" No Such File or Directory")
		return
	}

	s.cwd = target
	s.reply(StatusFileActionOK, "CWD Command Success")
}

// handleCDUP moves to the parent directory, never above the root.
func (s *session) handleCDUP(_ string) {
	if target, err := s.jail.Resolve(s.cwd, ".."); err == nil {
		s.cwd = target
	}
	s.reply(StatusFileActionOK, "CDUP Command Success")
}

func (s *session) handlePWD(_ string) {
	s.reply(StatusPathCreated, quotePath(s.jail.Virtual(s.cwd))+" is current directory")
}

// handleMKD creates the directory and any missing parents. An existing
// directory is not an error.
func (s *session) handleMKD(arg string) {
	if arg == "" {
		s.reply(StatusBadArguments, "MKD requires a directory name")
		return
	}
	target, err := s.jail.Resolve(s.cwd, arg)
	if err == nil {
		err = s.jail.MkdirAll(target)
	}
	if err != nil {
		s.replyError("MKD", err)
		return
	}

	s.logger.Info("directory_created", "user", s.account.Name, "path", s.jail.Virtual(target))
	s.reply(StatusPathCreated, quotePath(arg)+" creation success")
}

// handleRMD removes an empty directory.
func (s *session) handleRMD(arg string) {
	target, err := s.jail.Resolve(s.cwd, arg)
	if err != nil {
		s.replyError("RMD", err)
		return
	}

	info, err := s.jail.Stat(target)
	if err != nil || !info.IsDir() {
		s.reply(StatusFileUnavailable, "No Such File or Directory")
		return
	}
	if err := s.jail.Remove(target); err != nil {
		s.replyError("RMD", err)
		return
	}

	s.logger.Info("directory_removed", "user", s.account.Name, "path", s.jail.Virtual(target))
	s.reply(StatusFileActionOK, "Success Deleting Directory")
}

// handleDELE removes a file.
func (s *session) handleDELE(arg string) {
	target, err := s.jail.Resolve(s.cwd, arg)
	if err != nil {
		s.replyError("DELE", err)
		return
	}

	info, err := s.jail.Stat(target)
	if err != nil || info.IsDir() {
		s.reply(StatusFileUnavailable, "No Such File or Directory")
		return
	}
	if err := s.jail.Remove(target); err != nil {
		s.replyError("DELE", err)
		return
	}

	s.logger.Info("file_deleted", "user", s.account.Name, "path", s.jail.Virtual(target))
	s.reply(StatusFileActionOK, "Success Deleting")
}

// handleRNFR records the rename source; the next command must be RNTO.
func (s *session) handleRNFR(arg string) {
	source, err := s.jail.Resolve(s.cwd, arg)
	if err == nil {
		_, err = s.jail.Stat(source)
	}
	if err != nil {
		s.replyError("RNFR", err)
		return
	}

	s.renameFrom = source
	s.state = stateAwaitingRenameTarget
	s.reply(StatusPendingFurtherInfo, "File or Directory Exists, Ready for Destination")
}

// handleRNTO runs in stateAwaitingRenameTarget. Any other verb abandons the
// rename and is not executed.
func (s *session) handleRNTO(cmd, arg string) {
	source := s.renameFrom
	s.renameFrom = ""
	s.state = stateAuthenticated

	if cmd != "RNTO" {
		s.reply(StatusBadArguments, cmd+" Bad Sequence of Commands")
		return
	}

	target, err := s.jail.Resolve(s.cwd, arg)
	if err == nil {
		err = s.jail.Rename(source, target)
	}
	if err != nil {
		s.replyError("RNTO", err)
		return
	}

	s.logger.Info("file_renamed",
		"user", s.account.Name,
		"from", s.jail.Virtual(source),
		"to", s.jail.Virtual(target),
	)
	s.reply(StatusFileActionOK, "Success Renaming")
}

func (s *session) handleRNTOWithoutRNFR(_ string) {
	s.reply(StatusBadArguments, "RNTO Bad Sequence of Commands")
}
