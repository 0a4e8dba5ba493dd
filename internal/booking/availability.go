package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/studio-booking/internal/catalog"
)

// Availability computes, per catalog slot, which studios are still free on
// the given date. With a zero studioID it returns enriched free-studio lists
// plus the full studio set; with a studioID it returns only per-slot booleans
// for that studio. Read-only.
func (s *Service) Availability(ctx context.Context, date time.Time, studioID uuid.UUID) ([]AvailabilitySlot, []Studio, error) {
	day := NormalizeDate(date)

	occupied, err := s.repo.ListOccupied(ctx, day, studioID)
	if err != nil {
		return nil, nil, fmt.Errorf("list occupied slots: %w", err)
	}

	if studioID != uuid.Nil {
		booked := make(map[string]bool, len(occupied))
		for _, o := range occupied {
			booked[o.StartTime] = true
		}

		slots := make([]AvailabilitySlot, 0, len(catalog.Timeslots))
		for _, slot := range catalog.Timeslots {
			slots = append(slots, AvailabilitySlot{
				Start:     slot.Start,
				End:       slot.End,
				Label:     slot.Label,
				Available: !booked[slot.Start],
			})
		}
		return slots, nil, nil
	}

	studios, err := s.repo.ListStudios(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list studios: %w", err)
	}

	// studio -> set of booked start times
	booked := make(map[uuid.UUID]map[string]bool)
	for _, o := range occupied {
		if booked[o.StudioID] == nil {
			booked[o.StudioID] = make(map[string]bool)
		}
		booked[o.StudioID][o.StartTime] = true
	}

	slots := make([]AvailabilitySlot, 0, len(catalog.Timeslots))
	for i, slot := range catalog.Timeslots {
		var free []EnrichedStudio
		for _, studio := range studios {
			if booked[studio.ID][slot.Start] {
				continue
			}
			free = append(free, enrichStudio(studio, i, len(free)))
		}

		slots = append(slots, AvailabilitySlot{
			Start:            slot.Start,
			End:              slot.End,
			Label:            slot.Label,
			Available:        len(free) > 0,
			AvailableStudios: free,
		})
	}

	return slots, studios, nil
}

// enrichStudio derives display metadata for a free studio. slotIdx is the
// slot's catalog position, freeIdx the studio's position in that slot's
// free list. Pure function of its inputs so responses are reproducible;
// none of the derived fields feed back into availability decisions.
func enrichStudio(studio Studio, slotIdx, freeIdx int) EnrichedStudio {
	imageIdx := (len(studio.Name) + slotIdx) % len(catalog.StudioImages)
	amenityCount := 2 + (len(studio.Name) % 3)

	return EnrichedStudio{
		ID:             studio.ID,
		Name:           studio.Name,
		Description:    studio.Description,
		ImageURL:       catalog.StudioImages[imageIdx],
		Amenities:      catalog.Amenities[:amenityCount],
		SlotsAvailable: 1 + ((slotIdx + freeIdx) % 5),
	}
}
