package gosseract

import "image"

type PageIteratorLevel int

const RIL_TEXTLINE PageIteratorLevel = 2

type BoundingBox struct {
	Box        image.Rectangle
	Word       string
	Confidence float64
}
type Client struct{}

func NewClient() *Client                                     { return &Client{} }
func (c *Client) Close() error                               { return nil }
func (c *Client) SetLanguage(l ...string) error              { return nil }
func (c *Client) SetImageFromBytes(b []byte) error           { return nil }
func (c *Client) GetBoundingBoxes(l PageIteratorLevel) ([]BoundingBox, error) { return nil, nil }
