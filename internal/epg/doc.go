// Package epg rewrites XMLTV guide data per user: timeshifting
// programme start/stop times, filtering channels/programmes to a
// per-user bouquet, and obfuscating icon URLs behind a token the
// dispatcher later reveals (spec §4.7, §6 "EPG_RESOURCE_PATH").
//
// Grounded directly on original_source/backend/src/api/endpoints/xmltv_api.rs's
// serve_epg_with_rewrites: the SAX-style token walk with a skip_depth
// counter, the hand-written XML declaration/DOCTYPE (to dodge an XML
// serializer escaping the DTD system identifier), and the
// gzip-in/gzip-out framing. The token walk itself is reimplemented over
// encoding/xml (teacher's internal/epglink/epglink.go and
// internal/tuner/xmltv.go both already walk XMLTV with
// encoding/xml.Decoder) in place of quick_xml's async reader/writer.
package epg
