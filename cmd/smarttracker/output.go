package main

import (
	"fmt"
	"io"
	"strings"

	"smarttracker/internal/format"
	"smarttracker/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeStructured(w io.Writer, payload any) error {
	return outputFormatter.Write(w, payload)
}

func writePlain(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeActivityList(w io.Writer, activities []models.Activity) error {
	if len(activities) == 0 {
		return writePlain(w, "no activities\n")
	}
	for _, activity := range activities {
		if err := writePlain(w, "%s\n", formatActivityLine(activity)); err != nil {
			return err
		}
	}
	return nil
}

func writeActivityDetail(w io.Writer, activity models.Activity) error {
	lines := []string{
		fmt.Sprintf("id: %s", activity.ID),
		fmt.Sprintf("location: %s", activity.Location()),
		fmt.Sprintf("timestamp: %s", activity.Timestamp),
	}
	if activity.Description != nil {
		lines = append(lines, fmt.Sprintf("description: %s", *activity.Description))
	}
	if activity.HasImage() {
		lines = append(lines, fmt.Sprintf("image_url: %s", *activity.ImageURL))
	}
	return writePlain(w, "%s\n", strings.Join(lines, "\n"))
}

func formatActivityLine(activity models.Activity) string {
	line := fmt.Sprintf("%s  %s  (%s)", activity.ID, activity.Timestamp, activity.Location())
	if activity.Description != nil && *activity.Description != "" {
		line += " - " + *activity.Description
	}
	if activity.HasImage() {
		line += " [image]"
	}
	return line
}
