package mcpserver

// TimelineContract describes the editing model that LLM consumers should
// respect when driving the timeline.
const TimelineContract = `# Fractal Timeline Contract

The timeline is a fixed, ordered list of tracks. Every track has a kind and
holds clips of that kind only.

## Kinds

- ` + "`VIDEO`" + `, ` + "`AUDIO`" + ` and ` + "`IMAGE`" + `. An asset's kind decides which track it lands on.

## Placing assets

1. ` + "`place_asset`" + ` appends the asset to the first track of its kind, right
   after that track's last clip. Clips on a track never overlap and never leave gaps.
2. If that track is locked, or no track of the kind exists, nothing happens and
   the tool reports ` + "`placed: false`" + `. There is no fall-through to a second track.
3. The clip length is the asset's nominal duration, 5 seconds when it has none.
4. The timeline grows to fit: when a clip ends past the current duration, the
   duration becomes the clip end plus 10 seconds. It never shrinks.

## Tracks

- ` + "`update_track`" + ` changes ` + "`name`" + `, ` + "`locked`" + ` and ` + "`muted`" + ` only.
- Track deletion requires human confirmation and is not available as a tool.

## Reorder

` + "`reorder_audio`" + ` shuffles the clips of every unlocked audio track with a
uniform random permutation and packs them back-to-back from 0. Video and image
tracks are never touched.

## Transport

- Times are seconds from the start of the timeline.
- ` + "`seek`" + ` clamps to [0, duration]. ` + "`play`" + ` and ` + "`pause`" + ` are idempotent.
- Playback stops and rewinds to 0 at the end of the timeline.

## Generated assets

- ` + "`register_generated_asset`" + ` with ` + "`download: true`" + ` (default) stores the file
  in the library's ` + "`generated/`" + ` folder, so it survives restarts.
- With ` + "`download: false`" + ` the asset is registered by URL; ` + "`kind`" + ` is then required.
- Registering the same content or URL again returns the existing asset.
`
