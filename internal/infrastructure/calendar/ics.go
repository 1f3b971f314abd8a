// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package calendar renders recurring event instances as iCalendar data.
package calendar

import (
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// ContentType is the media type of a rendered calendar.
const ContentType = "text/calendar; charset=utf-8"

const (
	productID          = "-//The Linux Foundation//LFX Recurring Events//EN"
	recurrenceIDLayout = "20060102T150405Z"
)

// Render serializes the instances as a PUBLISH calendar. Each instance is its
// own VEVENT keyed by the instance id; RECURRENCE-ID is the originally
// scheduled start and RELATED-TO the series, so clients can group them.
func Render(instances []*models.ResolvedInstance, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)

	for _, instance := range instances {
		event := cal.AddEvent(instance.ID)
		event.SetDtStampTime(stamp.UTC())
		event.SetSummary(instance.Name)
		if instance.Description != "" {
			event.SetDescription(instance.Description)
		}
		if instance.Location != "" {
			event.SetLocation(instance.Location)
		}

		if instance.AllDay {
			event.SetAllDayStartAt(instance.ActualStartTime.UTC())
			event.SetAllDayEndAt(instance.ActualEndTime.UTC())
		} else {
			event.SetStartAt(instance.ActualStartTime.UTC())
			event.SetEndAt(instance.ActualEndTime.UTC())
		}

		event.SetProperty(ics.ComponentPropertyRecurrenceId, instance.OriginalInstanceStartTime.UTC().Format(recurrenceIDLayout))
		event.SetProperty(ics.ComponentPropertyRelatedTo, instance.OriginalSeriesID)
		// Version starts at 1; SEQUENCE starts at 0.
		event.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(max(instance.Version-1, 0)))
		event.SetProperty(ics.ComponentPropertyStatus, status(instance))
	}

	return cal.Serialize()
}

func status(instance *models.ResolvedInstance) string {
	if instance.IsCancelled {
		return "CANCELLED"
	}
	return "CONFIRMED"
}
