package ops

import (
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func registerTime(reg *lang.Registry) {
	reg.Register(simple("Timestamp", func(_ []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.Int(time.Now().UnixMilli()), nil
	}))
}
