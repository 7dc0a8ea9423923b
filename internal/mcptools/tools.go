// Package mcptools exposes the booth to MCP clients: an assistant can snap a
// styled photo from a file, browse and prune the gallery, and export a GIF.
package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/filehandler"
	"github.com/fpang/claw-cam/internal/photo"
	"github.com/fpang/claw-cam/internal/styles"
)

// SnapInput is the snap_photo argument set.
type SnapInput struct {
	ImagePath    string `json:"image_path,omitempty" jsonschema:"path of a JPEG, PNG, GIF or WebP capture on the server's disk"`
	Image        string `json:"image,omitempty" jsonschema:"capture as a data:image/... URL, used when image_path is empty"`
	Mode         string `json:"mode,omitempty" jsonschema:"style id from list_styles; keeps the current mode when empty"`
	CustomPrompt string `json:"custom_prompt,omitempty" jsonschema:"instruction used when mode is custom"`
	OutputPath   string `json:"output_path,omitempty" jsonschema:"where to save the styled image; an extension is added when missing"`
}

// SnapOutput describes the completed photo.
type SnapOutput struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	SavedPath string `json:"saved_path,omitempty"`
}

// ListPhotosOutput is the gallery.
type ListPhotosOutput struct {
	Photos    []photo.Photo `json:"photos"`
	Favorites []string      `json:"favorites"`
	Selection []string      `json:"selection"`
}

// IDInput names one photo.
type IDInput struct {
	ID string `json:"id" jsonschema:"photo id from list_photos"`
}

// DeleteOutput reports whether a photo was removed.
type DeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// GIFInput selects the GIF frames.
type GIFInput struct {
	IDs        []string `json:"ids,omitempty" jsonschema:"photo ids in frame order; defaults to the most recent completed photos"`
	OutputPath string   `json:"output_path" jsonschema:"file to write the GIF to"`
}

// GIFOutput describes the written GIF.
type GIFOutput struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// StylesOutput is the style catalog and the active mode.
type StylesOutput struct {
	Styles []styles.Style `json:"styles"`
	Mode   string         `json:"mode"`
}

// Tools binds the MCP handlers to a booth.
type Tools struct {
	booth *photo.Orchestrator
}

// NewServer returns an MCP server with every booth tool registered.
func NewServer(booth *photo.Orchestrator, version string) *mcp.Server {
	t := &Tools{booth: booth}
	server := mcp.NewServer(&mcp.Implementation{Name: "claw-cam", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "snap_photo",
		Description: "Restyle a photo with the booth's image model and return the result. Blocks until generation finishes.",
	}, t.SnapPhoto)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_photos",
		Description: "List the gallery, newest first, with favorite and selected ids.",
	}, t.ListPhotos)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_photo",
		Description: "Delete a photo, cancelling its generation if it is still running.",
	}, t.DeletePhoto)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "make_gif",
		Description: "Assemble completed photos into an animated GIF and write it to a file.",
	}, t.MakeGIF)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_styles",
		Description: "List the style ids snap_photo accepts as mode.",
	}, t.ListStyles)
	return server
}

// SnapPhoto handles snap_photo.
func (t *Tools) SnapPhoto(ctx context.Context, _ *mcp.CallToolRequest, in SnapInput) (*mcp.CallToolResult, SnapOutput, error) {
	input := in.Image
	if in.ImagePath != "" {
		c, err := filehandler.LoadCapture(in.ImagePath)
		if err != nil {
			return nil, SnapOutput{}, err
		}
		if c.Info != nil && c.Info.Camera() != "" {
			log.Debug().Str("camera", c.Info.Camera()).Msg("Snapping capture from file")
		}
		input = c.DataURL
	}
	if input == "" {
		return nil, SnapOutput{}, errors.New("image_path or image is required")
	}

	if in.Mode != "" {
		if err := t.booth.SetMode(in.Mode); err != nil {
			return nil, SnapOutput{}, err
		}
	}
	if in.CustomPrompt != "" {
		t.booth.SetCustomPrompt(in.CustomPrompt)
	}

	p, err := t.booth.SnapPhoto(ctx, input)
	if err != nil {
		return nil, SnapOutput{}, err
	}
	out, ok := t.booth.Output(p.ID)
	if !ok {
		return nil, SnapOutput{}, fmt.Errorf("photo %s finished without an output", p.ID)
	}

	result := SnapOutput{ID: p.ID, Mode: p.Mode}
	if in.OutputPath != "" {
		saved, err := filehandler.SaveImage(out, in.OutputPath)
		if err != nil {
			return nil, SnapOutput{}, err
		}
		result.SavedPath = saved
	}

	mimeType, data, err := dataurl.Decode(out)
	if err != nil {
		return nil, SnapOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Photo %s styled as %s.", p.ID, p.Mode)},
			&mcp.ImageContent{Data: data, MIMEType: mimeType},
		},
	}, result, nil
}

// ListPhotos handles list_photos.
func (t *Tools) ListPhotos(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ListPhotosOutput, error) {
	return nil, ListPhotosOutput{
		Photos:    t.booth.Photos(),
		Favorites: t.booth.Favorites(),
		Selection: t.booth.Selection(),
	}, nil
}

// DeletePhoto handles delete_photo.
func (t *Tools) DeletePhoto(_ context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if in.ID == "" {
		return nil, DeleteOutput{}, errors.New("id is required")
	}
	return nil, DeleteOutput{Deleted: t.booth.DeletePhoto(in.ID)}, nil
}

// MakeGIF handles make_gif.
func (t *Tools) MakeGIF(ctx context.Context, _ *mcp.CallToolRequest, in GIFInput) (*mcp.CallToolResult, GIFOutput, error) {
	if in.OutputPath == "" {
		return nil, GIFOutput{}, errors.New("output_path is required")
	}
	data, err := t.booth.MakeGIF(ctx, in.IDs)
	if err != nil {
		return nil, GIFOutput{}, err
	}
	if err := filehandler.WriteFile(in.OutputPath, data); err != nil {
		return nil, GIFOutput{}, err
	}
	return nil, GIFOutput{Path: in.OutputPath, Bytes: len(data)}, nil
}

// ListStyles handles list_styles.
func (t *Tools) ListStyles(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, StylesOutput, error) {
	return nil, StylesOutput{
		Styles: t.booth.Catalog().All(),
		Mode:   t.booth.Snapshot().Mode,
	}, nil
}
