// Package qr renders the scannable image that points at a menu's public page.
package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// ContentType of generated artifacts.
	ContentType = "image/png"
	defaultSize = 256
)

// Generator encodes menu URLs as PNG QR codes.
type Generator struct {
	baseURL string
	size    int
}

// NewGenerator builds a generator for menus served under baseURL.
func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), size: defaultSize}
}

// TargetURL is the address encoded for a menu. It depends only on the id.
func (g *Generator) TargetURL(menuID string) string {
	return g.baseURL + "/menu/" + menuID
}

// Generate renders the QR image for menuID. Output is deterministic.
func (g *Generator) Generate(menuID string) ([]byte, error) {
	if menuID == "" {
		return nil, fmt.Errorf("qr: empty menu id")
	}
	png, err := qrcode.Encode(g.TargetURL(menuID), qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// ArtifactKey is the object-store key of a menu's QR image.
func ArtifactKey(menuID string) string {
	return "qr_menu/" + menuID + ".png"
}
