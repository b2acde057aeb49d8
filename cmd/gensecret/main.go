package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytesLen = 32

// Print random hex string suitable for SECRET_KEY
func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	length := fs.IntP("bytes", "n", defaultSecretKeyBytesLen, "Secret length in bytes; printed hex is twice longer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// RFC 7518: HMAC key must be at least as long as the hash output
	if *length < defaultSecretKeyBytesLen {
		return errors.New("secret must be at least 32 bytes long")
	}

	b := make([]byte, *length)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, hex.EncodeToString(b))
	return err
}
