package whiskio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/elyall/whisk-1/whisk"
)

// SaveMeasurements writes the derived per-whisker scalars. The first
// row records the session face hint; with the hint unset every record
// carries the explicit unknown-orientation marker, since
// follicle-relative angles cannot be resolved without a face side.
func SaveMeasurements(path string, ms []whisk.Measurement, hint whisk.FaceHint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create measurements file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	faceHint := hint.String()
	if !hint.Known() {
		faceHint = "unknown"
	}
	if err := writer.Write([]string{"face_hint", faceHint}); err != nil {
		return fmt.Errorf("write measurements face hint: %w", err)
	}
	header := []string{
		"frame", "traj", "orientation",
		"length_px", "root_angle_deg", "mean_curvature",
		"follicle_x", "follicle_y",
		"velocity_valid", "v_length", "v_angle", "v_curvature", "v_follicle_x", "v_follicle_y",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write measurements header: %w", err)
	}
	for _, m := range ms {
		orientation := "known"
		if !m.KnownOrientation {
			orientation = "unknown"
		}
		row := []string{
			strconv.Itoa(m.Frame),
			strconv.Itoa(m.TrajectoryID),
			orientation,
			formatFloat(m.Length),
			formatFloat(m.RootAngleDeg),
			formatFloat(m.MeanCurvature),
			formatFloat(m.FollicleX),
			formatFloat(m.FollicleY),
			strconv.FormatBool(m.VelocityValid),
			formatFloat(m.Velocity.Length),
			formatFloat(m.Velocity.RootAngleDeg),
			formatFloat(m.Velocity.MeanCurvature),
			formatFloat(m.Velocity.FollicleX),
			formatFloat(m.Velocity.FollicleY),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write measurement (frame %d, traj %d): %w", m.Frame, m.TrajectoryID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
