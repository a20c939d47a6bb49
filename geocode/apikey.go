// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// APIKeyDisplayName is the display name of the Maps key provisioned for the
// deployment project.
const APIKeyDisplayName = "Pinpoint Geocoding Key"

// GoogleMapsAPIKey returns GOOGLE_MAPS_API_KEY or, when unset, looks the key
// up through Application Default Credentials.
func GoogleMapsAPIKey(ctx context.Context) (string, error) {
	if apiKey := os.Getenv("GOOGLE_MAPS_API_KEY"); apiKey != "" {
		return apiKey, nil
	}

	log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

	apiKey, err := APIKeyFromADC(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	if err != nil {
		return "", fmt.Errorf("retrieving API key via ADC: %w", err)
	}

	log.Println("Retrieved Google Maps API Key via ADC")

	return apiKey, nil
}

// APIKeyFromADC finds the API key named APIKeyDisplayName in the project of
// the default credentials (or projectID when given) and returns its secret.
func APIKeyFromADC(ctx context.Context, projectID string) (string, error) {
	if projectID == "" {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("finding default credentials: %w", err)
		}

		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project ID in credentials; set GOOGLE_CLOUD_PROJECT")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	req := &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	}

	it := client.ListKeys(ctx, req)

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != APIKeyDisplayName {
			continue
		}

		// ListKeys redacts the secret; GetKeyString returns it.
		log.Printf("Found key resource '%s', retrieving secret...", key.Name)

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' found but KeyString is empty", APIKeyDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", APIKeyDisplayName, projectID)
}
