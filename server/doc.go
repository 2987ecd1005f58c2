/*
Package server implements an FTP server that confines every account to its
own root directory.

# Accounts

Accounts live in an immutable UserDirectory built at startup. Each account has
a name, a password (plain text or a bcrypt hash), a role and a root path.
Accounts with the blocked or notallowed role are refused at USER.

# Jail

After login a session works inside a Jail opened on the account root. Path
arguments are resolved against the current directory, ".." never climbs above
the root, and all file access goes through an os.Root handle so symlinks
cannot lead outside either. Clients see paths rooted at "/".

# Sessions

Each control connection runs in its own goroutine and moves through an
explicit state machine: unauthenticated, awaiting password, authenticated and
awaiting rename target. Commands are processed one at a time; QUIT is honoured
in every state.

# Data connections

PASV opens a listener (fixed port, port range or ephemeral), PORT records an
active target which must match the control peer. The next LIST, RETR, STOR,
APPE or STOU consumes the mode; a new PASV or PORT is needed for each
transfer. Files are copied as raw bytes regardless of TYPE.

# Usage

	users, _ := server.NewUserDirectory(
	    server.Account{Name: "alice", Password: "secret", RootPath: "/srv/ftp/alice"},
	)
	s, err := server.NewServer(":2121",
	    server.WithUsers(users),
	    server.WithPassivePortRange(50000, 50100),
	)
	if err != nil {
	    log.Fatal(err)
	}
	log.Fatal(s.ListenAndServe())

Surrounding code that accepts connections itself can call ServeConn for each
connection.
*/
package server
