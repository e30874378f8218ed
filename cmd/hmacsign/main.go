// Command hmacsign emits the HMAC headers a client must send to the Auth
// Gateway, as curl -H flags, grounded on
// original_source/tools/sign_hmac.py but following spec §4.1/§6's
// canonical string order (METHOD, PATH, BODY_SHA_HEX, TS, NONCE) rather
// than the original tool's.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AllEyesOnMyPon/OpsLog/internal/auth"
)

func main() {
	var (
		nonce      = flag.Bool("nonce", false, "include X-Nonce")
		tsOffset   = flag.Duration("ts-offset", 0, "offset applied to now for X-Timestamp, e.g. -10m")
		explicitTS = flag.String("ts", "", "explicit ISO8601 timestamp, overrides -ts-offset")
		bodyFile   = flag.String("body-file", "", "read the request body from this file instead of the body argument")
		onePerLine = flag.Bool("one-per-line", false, "print each header on its own line")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] api_key secret method url [body]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 4 {
		flag.Usage()
		os.Exit(2)
	}
	apiKey, secret, method, rawURL := args[0], args[1], args[2], args[3]
	body := "{}"
	if len(args) > 4 {
		body = args[4]
	}

	var bodyBytes []byte
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading body file: %v\n", err)
			os.Exit(1)
		}
		bodyBytes = data
	} else {
		bodyBytes = []byte(body)
	}

	ts := *explicitTS
	if ts == "" {
		ts = auth.FormatTimestamp(time.Now().Add(*tsOffset))
	}

	path, err := pathOnly(rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing url: %v\n", err)
		os.Exit(1)
	}

	bodyHash := auth.BodySHA256Hex(bodyBytes)

	var nonceValue string
	if *nonce {
		nonceValue = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	canonical := auth.Canonical(method, path, bodyHash, ts, nonceValue)
	signature := auth.Sign([]byte(secret), canonical)

	headers := [][2]string{
		{auth.HeaderAPIKey, apiKey},
		{auth.HeaderTimestamp, ts},
		{auth.HeaderBodySHA256, bodyHash},
		{auth.HeaderSignature, signature},
	}
	if *nonce {
		headers = append(headers, [2]string{auth.HeaderNonce, nonceValue})
	}

	for i, h := range headers {
		sep := " "
		if *onePerLine {
			sep = "\n"
		}
		fmt.Printf(`-H "%s: %s"`, h[0], h[1])
		if i < len(headers)-1 {
			fmt.Print(sep)
		}
	}
	fmt.Println()
}

// pathOnly returns the URL path without its query string, matching the
// server's auth.PathWithoutQuery(r.URL.Path) (the canonical string signs
// the path alone, spec §3/§6).
func pathOnly(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return path, nil
}
