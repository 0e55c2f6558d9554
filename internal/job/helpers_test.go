package job

import "spool/internal/preset"

func testConfig() preset.Config {
	p, _ := preset.Lookup(preset.DefaultPreset)
	return p.Config
}
