package ftp

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Store uploads r to remotePath, replacing any existing file. The transfer
// is performed in binary mode (TYPE I).
//
// Example:
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Store("remote.txt", file)
func (c *Client) Store(remotePath string, r io.Reader) error {
	_, err := c.upload("STOR", r, remotePath)
	return err
}

// Append appends r to remotePath, creating the file if needed.
func (c *Client) Append(remotePath string, r io.Reader) error {
	_, err := c.upload("APPE", r, remotePath)
	return err
}

// StoreUnique uploads r with STOU. If remotePath is empty or already exists
// the server picks a new name. It returns the name the server used.
func (c *Client) StoreUnique(remotePath string, r io.Reader) (string, error) {
	var args []string
	if remotePath != "" {
		args = append(args, remotePath)
	}
	resp, err := c.upload("STOU", r, args...)
	if err != nil {
		return "", err
	}
	return parseUniqueName(resp.Message), nil
}

// parseUniqueName extracts the name from a "150 FILE: name" reply.
func parseUniqueName(msg string) string {
	if _, name, ok := strings.Cut(msg, "FILE:"); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

func (c *Client) upload(cmd string, r io.Reader, args ...string) (*Response, error) {
	if err := c.Type("I"); err != nil {
		return nil, fmt.Errorf("failed to set binary mode: %w", err)
	}

	resp, dataConn, err := c.cmdDataConn(cmd, args...)
	if err != nil {
		return nil, err
	}

	_, copyErr := io.Copy(dataConn, r)
	finishErr := c.finishDataConn(cmd, dataConn)

	if copyErr != nil {
		return nil, fmt.Errorf("upload failed: %w", copyErr)
	}
	if finishErr != nil {
		return nil, finishErr
	}
	return resp, nil
}

// Retrieve downloads remotePath into w in binary mode.
func (c *Client) Retrieve(remotePath string, w io.Writer) error {
	if err := c.Type("I"); err != nil {
		return fmt.Errorf("failed to set binary mode: %w", err)
	}

	_, dataConn, err := c.cmdDataConn("RETR", remotePath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(w, dataConn)
	finishErr := c.finishDataConn("RETR", dataConn)

	if copyErr != nil {
		return fmt.Errorf("download failed: %w", copyErr)
	}
	return finishErr
}

// UploadFile uploads the local file localPath to remotePath.
func (c *Client) UploadFile(localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	return c.Store(remotePath, file)
}

// DownloadFile downloads remotePath to the local file localPath. A partial
// file is removed when the transfer fails.
func (c *Client) DownloadFile(remotePath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}

	err = c.Retrieve(remotePath, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(localPath)
		return err
	}
	return nil
}
