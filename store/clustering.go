// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"sort"
)

// SharedPin is a group of properties pinned within a few meters of each
// other: units of one building, or a pin copied between listings by mistake.
type SharedPin struct {
	Code       string              `json:"code"` // code of the first member
	Properties []*PropertyLocation `json:"properties"`
}

// SharedPins groups pinned properties whose pins are within radiusMeters of
// some other member of the group. Single properties are not reported.
func SharedPins(repo Repository, radiusMeters float64) ([]*SharedPin, error) {
	all, err := repo.List(0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}

	pinned := make([]*PropertyLocation, 0, len(all))

	for _, loc := range all {
		if _, ok := loc.Point(); ok {
			pinned = append(pinned, loc)
		}
	}

	sort.Slice(pinned, func(i, j int) bool {
		return pinned[i].PropertyID < pinned[j].PropertyID
	})

	var result []*SharedPin

	for _, cluster := range clusterLocations(pinned, radiusMeters) {
		if len(cluster) < 2 {
			continue
		}

		result = append(result, &SharedPin{Code: cluster[0].Code(), Properties: cluster})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return len(result[i].Properties) > len(result[j].Properties)
	})

	return result, nil
}

// clusterLocations groups locations into clusters based on a distance
// threshold in meters. Every location must be pinned.
func clusterLocations(locations []*PropertyLocation, distanceThreshold float64) [][]*PropertyLocation {
	clusters := make([][]*PropertyLocation, 0, len(locations))

	visited := make([]bool, len(locations))

	for i, l1 := range locations {
		if visited[i] {
			continue
		}

		cluster := []*PropertyLocation{l1}
		visited[i] = true

		// Members added later are compared against too.
		for m := 0; m < len(cluster); m++ {
			mp, _ := cluster[m].Point()

			for j, l2 := range locations {
				if visited[j] {
					continue
				}

				p, _ := l2.Point()
				if mp.HaversineDistance(&p) <= distanceThreshold {
					cluster = append(cluster, l2)
					visited[j] = true
				}
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
