package main

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// qrHandler generates a PNG QR code for a game's join URL, so teams can
// get the join code onto their phones without typing it. This is the
// out-of-band half of the handshake: the code itself never travels over
// the game channel.
func qrHandler(cfg *Config, gm *gameManager, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if gm.get(code) == nil {
			http.Error(w, "no such game", http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at .../game/:code/qr; strip the trailing "/qr" to get
		// the join URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			log.Warn().Err(err).Str("game", code).Msg("qr generation failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		written, _ := w.Write(png)

		log.Debug().
			Str("game", code).
			Str("size", humanReadableSize(int64(written))).
			Str("client", realIP(r)).
			Msg("served join qr")
	}
}
