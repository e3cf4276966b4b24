package testsupport

// SampleScript is a three-scene text script totalling 23 seconds.
const SampleScript = `Title: Launch Day
Duration: 00:23

[00:00]
Narration: Welcome to launch day.
Visual: A rocket on the pad at dawn.
Text: Launch Day

[00:05]
Narration: Engines ignite.
Visual: Flames under the rocket.
Text: T minus zero

[00:15]
Narration: And we have liftoff.
Visual: The rocket climbs into the sky.
`
