package animator

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnknownClip is returned for a clip index the animator does not hold.
	ErrUnknownClip = errors.New("animator: unknown clip")

	// ErrInvalidClip is returned when a clip does not fit the skeleton or has malformed keys.
	ErrInvalidClip = errors.New("animator: invalid clip")
)

// playbackState tracks playback time, speed, looping and the blend in progress.
type playbackState struct {
	clip    int
	playing bool

	time, speed float32
	loop        bool

	blending                    bool
	blendTo                     int
	blendToTime                 float32
	blendDuration, blendElapsed float32
}

// animator is the implementation of the Animator interface.
type animator struct {
	skel  skeleton.Skeleton
	clips []Clip
	// channels[clip][bone] indexes into clips[clip].Channels, or -1
	channels [][]int
	byName   map[string]int

	state playbackState

	// the pose last written, so a paused clip does not touch the skeleton
	posed     bool
	posedClip int
	posedTime float32

	pending []Clip
}

// Animator plays skeletal clips on the CPU and writes the sampled pose into a skeleton's local
// transforms.
//
// One clip plays at a time. BlendTo crossfades to a second clip over a duration: translations
// are blended linearly and rotations by slerp, and the target becomes the primary clip when the
// blend completes. PrepareFrame advances time and writes the pose; bones no clip animates keep
// their current local transform. Forward kinematics is left to the skeleton.
//
// An Animator is not safe for concurrent use.
type Animator interface {
	// Skeleton returns the skeleton this animator poses.
	Skeleton() skeleton.Skeleton

	// AddClip registers a clip.
	//
	// Parameters:
	//   - clip: the clip; its channels must target bones of the skeleton
	//
	// Returns:
	//   - int: the clip index
	//   - error: ErrInvalidClip (wrapped) if the clip does not fit the skeleton
	AddClip(clip Clip) (int, error)

	// ClipCount returns the number of registered clips.
	ClipCount() int

	// ClipIndex looks a clip up by name.
	//
	// Parameters:
	//   - name: the clip name
	//
	// Returns:
	//   - int: the clip index
	//   - bool: true if found
	ClipIndex(name string) (int, bool)

	// Play starts a clip from time zero at normal speed, cancelling any blend.
	//
	// Parameters:
	//   - clip: the clip index
	//   - loop: whether playback wraps at the clip's end
	//
	// Returns:
	//   - error: ErrUnknownClip (wrapped) for a bad index
	Play(clip int, loop bool) error

	// BlendTo crossfades from the current clip to another, starting the target at time zero.
	// A non-positive duration switches immediately.
	//
	// Parameters:
	//   - clip: the target clip index
	//   - duration: the crossfade length in seconds
	//
	// Returns:
	//   - error: ErrUnknownClip (wrapped) for a bad index
	BlendTo(clip int, duration float32) error

	// CancelBlend stops an in-progress blend and keeps the current primary clip.
	CancelBlend()

	// IsBlending reports whether a crossfade is in progress.
	IsBlending() bool

	// BlendProgress returns crossfade progress from 0 to 1, or 0 when not blending.
	BlendProgress() float32

	// Stop halts playback; PrepareFrame stops writing the skeleton.
	Stop()

	// IsPlaying reports whether a clip is playing.
	IsPlaying() bool

	// CurrentClip returns the primary clip index, or -1 when nothing has been played.
	CurrentClip() int

	// SetTime seeks the primary clip.
	SetTime(t float32)

	// Time returns the primary clip's playback time in seconds.
	Time() float32

	// SetSpeed sets the playback speed multiplier (1 = normal, negative plays backwards).
	SetSpeed(speed float32)

	// Speed returns the playback speed multiplier.
	Speed() float32

	// Finished reports whether a non-looping clip has reached its end.
	Finished() bool

	// PrepareFrame advances playback by deltaTime and writes the sampled pose into the skeleton.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	PrepareFrame(deltaTime float32)
}

var _ Animator = &animator{}

// NewAnimator creates an animator for a skeleton.
//
// Parameters:
//   - skel: the skeleton to pose
//   - options: functional options (initial clips)
//
// Returns:
//   - Animator: the new animator with nothing playing
//   - error: ErrInvalidClip (wrapped) if an initial clip does not fit the skeleton
func NewAnimator(skel skeleton.Skeleton, options ...AnimatorBuilderOption) (Animator, error) {
	if skel == nil {
		return nil, fmt.Errorf("animator: skeleton is required")
	}
	a := &animator{
		skel:   skel,
		byName: make(map[string]int),
		state:  playbackState{clip: -1, speed: 1},
	}
	for _, opt := range options {
		opt(a)
	}
	for _, c := range a.pending {
		if _, err := a.AddClip(c); err != nil {
			return nil, err
		}
	}
	a.pending = nil
	return a, nil
}

func (a *animator) Skeleton() skeleton.Skeleton {
	return a.skel
}

func (a *animator) AddClip(clip Clip) (int, error) {
	n := a.skel.BoneCount()
	if err := clip.Validate(n); err != nil {
		return -1, err
	}
	lookup := make([]int, n)
	for i := range lookup {
		lookup[i] = -1
	}
	for i, ch := range clip.Channels {
		lookup[ch.Bone] = i
	}

	idx := len(a.clips)
	a.clips = append(a.clips, clip)
	a.channels = append(a.channels, lookup)
	if clip.Name != "" {
		if _, exists := a.byName[clip.Name]; !exists {
			a.byName[clip.Name] = idx
		}
	}
	return idx, nil
}

func (a *animator) ClipCount() int {
	return len(a.clips)
}

func (a *animator) ClipIndex(name string) (int, bool) {
	idx, ok := a.byName[name]
	return idx, ok
}

func (a *animator) Play(clip int, loop bool) error {
	if clip < 0 || clip >= len(a.clips) {
		return fmt.Errorf("%w: %d", ErrUnknownClip, clip)
	}
	a.state = playbackState{
		clip:    clip,
		playing: true,
		speed:   1,
		loop:    loop,
	}
	a.posed = false
	return nil
}

func (a *animator) BlendTo(clip int, duration float32) error {
	if clip < 0 || clip >= len(a.clips) {
		return fmt.Errorf("%w: %d", ErrUnknownClip, clip)
	}
	if !a.state.playing || duration <= 0 {
		loop, speed := a.state.loop, a.state.speed
		a.state = playbackState{clip: clip, playing: true, speed: speed, loop: loop}
		a.posed = false
		return nil
	}
	a.state.blending = true
	a.state.blendTo = clip
	a.state.blendToTime = 0
	a.state.blendDuration = duration
	a.state.blendElapsed = 0
	return nil
}

func (a *animator) CancelBlend() {
	a.state.blending = false
	a.state.blendElapsed = 0
	a.posed = false
}

func (a *animator) IsBlending() bool {
	return a.state.blending
}

func (a *animator) BlendProgress() float32 {
	if !a.state.blending {
		return 0
	}
	return a.state.blendElapsed / a.state.blendDuration
}

func (a *animator) Stop() {
	a.state.playing = false
	a.state.blending = false
}

func (a *animator) IsPlaying() bool {
	return a.state.playing
}

func (a *animator) CurrentClip() int {
	return a.state.clip
}

func (a *animator) SetTime(t float32) {
	a.state.time = t
	a.posed = false
}

func (a *animator) Time() float32 {
	return a.state.time
}

func (a *animator) SetSpeed(speed float32) {
	a.state.speed = speed
}

func (a *animator) Speed() float32 {
	return a.state.speed
}

func (a *animator) Finished() bool {
	s := a.state
	if !s.playing || s.loop || s.clip < 0 {
		return false
	}
	d := a.clips[s.clip].Duration
	if s.speed < 0 {
		return s.time <= 0
	}
	return s.time >= d
}

func (a *animator) PrepareFrame(deltaTime float32) {
	s := &a.state
	if !s.playing || s.clip < 0 {
		return
	}

	s.time = a.advance(s.clip, s.time, deltaTime*s.speed, s.loop)

	var progress float32
	if s.blending {
		s.blendElapsed += deltaTime
		s.blendToTime = a.advance(s.blendTo, s.blendToTime, deltaTime*s.speed, s.loop)

		progress = s.blendElapsed / s.blendDuration
		if progress >= 1 {
			s.clip = s.blendTo
			s.time = s.blendToTime
			s.blending = false
			s.blendElapsed = 0
			progress = 0
		}
	}

	if !s.blending && a.posed && a.posedClip == s.clip && a.posedTime == s.time {
		return
	}
	a.writePose(progress)
	a.posed, a.posedClip, a.posedTime = !s.blending, s.clip, s.time
}

// advance moves a clip-local time forward, wrapping when looping and clamping otherwise.
func (a *animator) advance(clip int, t, delta float32, loop bool) float32 {
	t += delta
	d := a.clips[clip].Duration
	if d <= 0 {
		return 0
	}
	if loop {
		t = math32.Mod(t, d)
		if t < 0 {
			t += d
		}
		return t
	}
	return mgl32.Clamp(t, 0, d)
}

// writePose samples the primary clip, and the blend target when progress > 0, into the skeleton.
func (a *animator) writePose(progress float32) {
	s := &a.state
	primary := a.channels[s.clip]
	var secondary []int
	if s.blending {
		secondary = a.channels[s.blendTo]
	}

	for bone := range primary {
		pi := primary[bone]
		si := -1
		if secondary != nil {
			si = secondary[bone]
		}
		if pi < 0 && si < 0 {
			continue
		}

		id := common.BoneID(bone)
		current, _ := a.skel.BoneLocalTransform(id)
		from := current
		if pi >= 0 {
			from = a.clips[s.clip].Channels[pi].Sample(s.time, current)
		}
		if secondary == nil || progress <= 0 {
			_ = a.skel.SetBoneLocalTransform(id, from)
			continue
		}

		to := current
		if si >= 0 {
			to = a.clips[s.blendTo].Channels[si].Sample(s.blendToTime, current)
		}
		blended := common.Transform{
			Translation: from.Translation.Add(to.Translation.Sub(from.Translation).Mul(progress)),
			Rotation:    mgl32.QuatSlerp(from.Rotation, to.Rotation, progress),
		}
		_ = a.skel.SetBoneLocalTransform(id, blended)
	}
}
