// internal/config/modes.go
package config

import "gcmc-batch/internal/domain"

var (
	raspa2Profile = Engine{
		Binary:           "bin/simulate",
		Args:             []string{"simulation.input"},
		CaptureFile:      "output.txt",
		CompletionMarker: "Simulation finished",
		CompletionFile:   "Output/System_0/*",
		ReportFile:       "Output/System_0/*",
	}

	graspaProfile = Engine{
		Binary:           "gRASPA",
		CaptureFile:      "output.txt",
		CompletionMarker: "END OF PROGRAM",
		CompletionFile:   "output.txt",
		ReportFile:       "Output/System_0*.data",
	}

	profiles = map[domain.Mode]Engine{
		domain.ModeIsotherm:       raspa2Profile,
		domain.ModeHenry:          raspa2Profile,
		domain.ModeGRASPAIsotherm: graspaProfile,
		domain.ModeGRASPAHenry:    graspaProfile,
	}
)
