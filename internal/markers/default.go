package markers

import "github.com/coral-mesh/irscan/internal/template"

// Built-in marker texts.
const (
	UpdateCheckMarker = "CheckUpdatingSteamResources"
	SearchPathsMarker = "Multiple download search paths?"
)

// Default returns the built-in marker set used when no marker file is
// configured. It locates the download queue and download update routines
// from the update check, and locates the search path routine on its own.
func Default() *Set {
	return &Set{
		Markers: []Marker{
			{
				Name: UpdateCheckMarker,
				Targets: []template.Target{
					{
						Name: "CL_GetDownloadQueueSize",
						Patterns: []string{
							"HLIL_IF(HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(??), ()), HLIL_CONST(0)))",
						},
					},
					{
						Name: "CL_DownloadUpdate",
						Patterns: []string{
							// ELF builds test a flag first.
							"HLIL_IF(HLIL_AND(HLIL_CMP_NE(HLIL_VAR(..), HLIL_CONST(0)), HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(??), ()), HLIL_CONST(0))))",
							// PE builds store the result.
							"HLIL_ASSIGN(HLIL_VAR(..), HLIL_CALL(HLIL_CONST_PTR(??), ()))",
						},
					},
				},
			},
			{Name: SearchPathsMarker},
		},
	}
}
