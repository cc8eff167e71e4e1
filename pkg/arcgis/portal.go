package arcgis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrLayerNotFound is returned when a web map has no layer with the requested id.
var ErrLayerNotFound = errors.New("arcgis: layer not found")

var itemIDPattern = regexp.MustCompile(`id=([a-f0-9]+)`)

func (c *Client) itemsURL() string {
	portal := c.PortalURL
	if portal == "" {
		portal = DefaultPortalURL
	}
	return trimSlash(portal) + "/sharing/rest/content/items/"
}

// HandleArcGISOnlineItem fetches the item metadata behind an item page URL.
func (c *Client) HandleArcGISOnlineItem(ctx context.Context, itemPageURL string) (*ItemData, error) {
	matches := itemIDPattern.FindStringSubmatch(itemPageURL)
	if len(matches) < 2 {
		return nil, fmt.Errorf("could not extract item ID from URL: %s", itemPageURL)
	}
	return c.Item(ctx, matches[1])
}

// Item fetches portal item metadata by id.
func (c *Client) Item(ctx context.Context, itemID string) (*ItemData, error) {
	var itemData ItemData
	if err := c.FetchAndDecode(ctx, c.itemsURL()+itemID+"?f=json", &itemData); err != nil {
		return nil, fmt.Errorf("failed to fetch item metadata: %w", err)
	}
	c.log().Debug("portal item", "id", itemID, "type", itemData.Type)
	return &itemData, nil
}

// HandleWebMap fetches the data of a Web Map item.
func (c *Client) HandleWebMap(ctx context.Context, itemID string) (*WebMapData, error) {
	webMapDataURL := c.itemsURL() + itemID + "/data?f=json"
	c.log().Info("Fetching Web Map data", "url", webMapDataURL)

	var webMapData WebMapData
	if err := c.FetchAndDecode(ctx, webMapDataURL, &webMapData); err != nil {
		return nil, fmt.Errorf("failed to fetch web map data: %w", err)
	}
	return &webMapData, nil
}

// FindLayerByID loads a web map and returns the operational layer with the
// given id, searching group layers depth first.
func (c *Client) FindLayerByID(ctx context.Context, itemID, layerID string) (*OperationalLayer, error) {
	wm, err := c.HandleWebMap(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if l := findLayer(wm.OperationalLayers, layerID); l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q in web map %s", ErrLayerNotFound, layerID, itemID)
}

func findLayer(layers []OperationalLayer, id string) *OperationalLayer {
	for i := range layers {
		if layers[i].ID == id {
			return &layers[i]
		}
		if l := findLayer(layers[i].Layers, id); l != nil {
			return l
		}
	}
	return nil
}
