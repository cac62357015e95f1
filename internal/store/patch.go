package store

import "github.com/forPelevin/clipforge/internal/types"

// Status moves the project to st. Any non-error status clears the error
// message.
func Status(st types.Status) Patch {
	return func(p types.Project) types.Project {
		p.Status = st
		if st != types.StatusError {
			p.ErrorMessage = ""
		}
		return p
	}
}

// Progress applies a download percentage. Values are clamped to [0,100] and
// ignored unless they move progress forward.
func Progress(percent int) Patch {
	return func(p types.Project) types.Project {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent > p.ProgressPercent {
			p.ProgressPercent = percent
		}
		return p
	}
}

// StartDownload enters the downloading state with progress reset.
func StartDownload() Patch {
	return func(p types.Project) types.Project {
		p = Status(types.StatusDownloading)(p)
		p.ProgressPercent = 0
		return p
	}
}

func Metadata(m types.Metadata) Patch {
	return func(p types.Project) types.Project {
		p.Title = m.Title
		p.ThumbnailRef = m.ThumbnailRef
		p.DurationSeconds = m.DurationSeconds
		return p
	}
}

func Duration(sec float64) Patch {
	return func(p types.Project) types.Project {
		p.DurationSeconds = sec
		return p
	}
}

// Media records a finished download.
func Media(path string) Patch {
	return func(p types.Project) types.Project {
		p.MediaPath = path
		p.ProgressPercent = 100
		return Status(types.StatusComplete)(p)
	}
}

// Failed moves the project to the error state with msg.
func Failed(msg string) Patch {
	return func(p types.Project) types.Project {
		if msg == "" {
			msg = "unknown error"
		}
		p.Status = types.StatusError
		p.ErrorMessage = msg
		return p
	}
}

// ResetAnalysis enters the analyzing state and drops results of any earlier
// run so the new run overwrites them wholesale.
func ResetAnalysis() Patch {
	return func(p types.Project) types.Project {
		p = Status(types.StatusAnalyzing)(p)
		p.Segments = []types.Segment{}
		p.Clips = []types.Clip{}
		return p
	}
}

func Segments(segs []types.Segment) Patch {
	return func(p types.Project) types.Project {
		p.Segments = append([]types.Segment{}, segs...)
		return p
	}
}

func Clips(clips []types.Clip) Patch {
	return func(p types.Project) types.Project {
		p.Clips = append([]types.Clip{}, clips...)
		return p
	}
}

// ClipRender sets a clip's render state. outputPath and errMsg replace the
// previous values.
func ClipRender(clipID string, st types.RenderStatus, outputPath, errMsg string) Patch {
	return func(p types.Project) types.Project {
		_, i, ok := p.ClipByID(clipID)
		if !ok {
			return p
		}
		p.Clips = append([]types.Clip{}, p.Clips...)
		p.Clips[i].RenderStatus = st
		p.Clips[i].OutputPath = outputPath
		p.Clips[i].ErrorMessage = errMsg
		return p
	}
}
