// hook-sink is a minimal webhook receiver for local testing. It logs every
// delivery and, when a secret is supplied, verifies the signature header.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/okian/fanout/internal/adapters/webhook"
)

func main() {
	var (
		addr   = flag.String("addr", ":9999", "listen address")
		secret = flag.String("secret", "", "HMAC secret to verify signatures (empty skips verification)")
	)
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}

		fmt.Println("=== WEBHOOK RECEIVED ===")
		for _, h := range []string{
			webhook.HeaderWebhookID,
			webhook.HeaderDeliveryID,
			webhook.HeaderEventID,
			webhook.HeaderEventType,
			webhook.HeaderSignature,
		} {
			fmt.Printf("%s: %s\n", h, r.Header.Get(h))
		}
		fmt.Println("Body:", string(body))

		if *secret != "" {
			sig := r.Header.Get(webhook.HeaderSignature)
			if !webhook.Verify(*secret, body, sig) {
				fmt.Println("signature: INVALID")
				http.Error(w, "bad signature", http.StatusUnauthorized)
				return
			}
			fmt.Println("signature: ok")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	fmt.Println("hook-sink listening on", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Fprintln(os.Stderr, "server failed:", err)
		os.Exit(1)
	}
}
