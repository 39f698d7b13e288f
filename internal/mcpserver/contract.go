package mcpserver

// RecordFormat describes the annotation record shape for LLM consumers.
const RecordFormat = `# vidmark Annotation Records

An annotation is one saved, drawn-on frame of a video.

| field        | type   | notes                                              |
|--------------|--------|----------------------------------------------------|
| id           | string | unique, opaque                                     |
| videoId      | string | the video the frame was captured from              |
| timestamp_ms | int    | playback position of the frame, milliseconds >= 0  |
| timecode     | string | timestamp_ms rendered as HH:MM:SS.mmm              |
| image_path   | string | URL of the full annotated frame                    |
| thumb_path   | string | URL of a thumbnail no larger than 200x200          |
| notes        | string | free text, may be empty                            |
| created_at   | string | RFC 3339 creation time                             |

## Rules

1. Records are immutable. There is no update; delete and create again.
2. ` + "`list_annotations`" + ` returns records ordered by timestamp_ms, ties in creation order.
3. ` + "`create_annotation`" + ` takes the image as a base64 data URI
   (` + "`data:image/png;base64,...`" + `). PNG, JPEG and GIF are accepted.
4. Timeline positions are fractions in [0, 1] of the video duration. A video
   with unknown duration places every marker at 0.
`
