package model

import "time"

// Document is a single source file selected for inclusion in a packet.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// PacketRequest names the documents a caller wants assembled into one PDF.
type PacketRequest struct {
	Title     string   `json:"title" validate:"required"`
	Documents []string `json:"documents" validate:"required,min=1,dive,required"`
}

// Packet is a PDF returned by the document-generation worker.
type Packet struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Filename    string    `json:"filename"`
	Data        []byte    `json:"-"`
	GeneratedAt time.Time `json:"generated_at"`
}
