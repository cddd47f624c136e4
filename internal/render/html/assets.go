package html

import "strings"

// styleTemplate is the stylesheet with palette placeholders. {{light}} and
// {{dark}} are replaced with each profile's custom properties.
const styleTemplate = `
.dumpx{ {{light}} background:var(--dumpx-bg);color:var(--dumpx-text);font:13px/1.45 ui-monospace,SFMono-Regular,Menlo,Consolas,monospace;padding:8px 10px;border-radius:6px;border:1px solid var(--dumpx-muted);position:relative}
.dumpx[data-theme="dark"]{ {{dark}} }
@media (prefers-color-scheme: dark){.dumpx[data-theme="auto"]{ {{dark}} }}
html[data-dumpx-theme="light"] .dumpx[data-theme="auto"]{ {{light}} }
html[data-dumpx-theme="dark"] .dumpx[data-theme="auto"]{ {{dark}} }
.dumpx-toolbar{position:absolute;top:4px;right:6px}
.dumpx button{font:inherit;font-size:11px;color:var(--dumpx-accent);background:var(--dumpx-surface);border:1px solid var(--dumpx-muted);border-radius:4px;padding:0 5px;margin-left:4px;cursor:pointer}
.dumpx details{margin-left:0}
.dumpx details>*:not(summary){margin-left:1.4em}
.dumpx summary{cursor:pointer;list-style:revert}
.dumpx-actions{visibility:hidden}
.dumpx summary:hover .dumpx-actions,.dumpx-node:hover>.dumpx-actions{visibility:visible}
.dumpx-key{color:var(--dumpx-key)}
.dumpx-container-array>summary>.dumpx-text{color:var(--dumpx-array);font-weight:600}
.dumpx-container-object>summary>.dumpx-text{color:var(--dumpx-object);font-weight:600}
.dumpx-string>.dumpx-text{color:var(--dumpx-string)}
.dumpx-number>.dumpx-text{color:var(--dumpx-number)}
.dumpx-bool>.dumpx-text{color:var(--dumpx-bool)}
.dumpx-null>.dumpx-text{color:var(--dumpx-null);font-style:italic}
.dumpx-unknown>.dumpx-text,.dumpx-circular>.dumpx-text{color:var(--dumpx-muted)}
.dumpx-notice,.dumpx-performance{color:var(--dumpx-notice);font-style:italic}
.dumpx-expression{color:var(--dumpx-muted);margin-left:.6em}
.dumpx-preview{color:var(--dumpx-muted);margin-left:.6em}
.dumpx-exception>summary{color:var(--dumpx-exception);font-weight:600}
.dumpx-exception-info{border-collapse:collapse;margin:4px 0}
.dumpx-exception-info th{text-align:left;color:var(--dumpx-muted);padding-right:1em;font-weight:400}
.dumpx-frames{max-height:16em;overflow:auto;margin:4px 0;padding-left:2.5em;background:var(--dumpx-surface)}
.dumpx-frames code{color:var(--dumpx-accent)}
.dumpx pre{margin:2px 0;white-space:pre-wrap;background:var(--dumpx-surface);padding:4px 6px;border-radius:4px}
.dumpx-json-key{color:var(--dumpx-key)}
.dumpx-json-string{color:var(--dumpx-string)}
.dumpx-json-number{color:var(--dumpx-number)}
.dumpx-json-keyword{color:var(--dumpx-bool)}
.dumpx-sql-body{background:var(--dumpx-surface);padding:4px 6px;border-radius:4px}
.dumpx-sql-clause{color:var(--dumpx-array);font-weight:600}
.dumpx-sql-keyword{color:var(--dumpx-object)}
.dumpx-sql-string{color:var(--dumpx-string)}
.dumpx-sql-number{color:var(--dumpx-number)}
.dumpx-sql-comment{color:var(--dumpx-muted);font-style:italic}
.dumpx-diff-added>.dumpx-diff-line{color:var(--dumpx-added);background:color-mix(in srgb,var(--dumpx-added) 12%,transparent)}
.dumpx-diff-removed>.dumpx-diff-line{color:var(--dumpx-removed);background:color-mix(in srgb,var(--dumpx-removed) 12%,transparent)}
.dumpx-diff-modified>.dumpx-diff-line,.dumpx-diff-modified>summary{color:var(--dumpx-modified)}
.dumpx-diff-unchanged>.dumpx-diff-line{color:var(--dumpx-muted)}
.dumpx-context{color:var(--dumpx-muted);margin-top:8px}
.dumpx-match{outline:2px solid var(--dumpx-accent);border-radius:3px}
.dumpx-match-context>summary{text-decoration:underline dotted var(--dumpx-accent)}
.dumpx-table{border-collapse:collapse;margin:4px 0}
.dumpx-table th,.dumpx-table td{border:1px solid var(--dumpx-muted);padding:1px 6px;text-align:left;vertical-align:top}
.dumpx-table caption{color:var(--dumpx-muted);text-align:left}
`

// Style returns the stylesheet with both profiles substituted.
func Style(light, dark *Palette) string {
	return strings.NewReplacer("{{light}}", light.Vars(), "{{dark}}", dark.Vars()).Replace(styleTemplate)
}

// script wires the action buttons and the theme toggle. It binds once per
// page through event delegation, so repeated dumps share one listener set.
const script = `
(function(){
if (window.__dumpxReady) { return; }
window.__dumpxReady = true;
var KEY = 'dumpx-theme';
var channel = null;
try { channel = new BroadcastChannel('dumpx-theme'); } catch (e) {}

function applyTheme(theme, broadcast) {
  document.querySelectorAll('.dumpx').forEach(function(root){
    root.setAttribute('data-theme', theme);
    root.setAttribute('data-theme-preference', theme);
  });
  try { localStorage.setItem(KEY, theme); } catch (e) {}
  if (broadcast && channel) { channel.postMessage(theme); }
}
function storedTheme() {
  try { return localStorage.getItem(KEY); } catch (e) { return null; }
}
var saved = storedTheme();
if (saved) { applyTheme(saved, false); }
if (channel) { channel.onmessage = function(ev){ applyTheme(ev.data, false); }; }
window.addEventListener('storage', function(ev){
  if (ev.key === KEY && ev.newValue) { applyTheme(ev.newValue, false); }
});

function nextTheme(current) {
  return current === 'light' ? 'dark' : (current === 'dark' ? 'auto' : 'light');
}

function owner(btn) { return btn.closest('[data-node-type]'); }

function payload(node) {
  var raw = node.getAttribute('data-json');
  if (raw === null) { return undefined; }
  try { return JSON.parse(decodeURIComponent(raw)); } catch (e) { return undefined; }
}

function copyText(text) {
  if (navigator.clipboard && window.isSecureContext) {
    return navigator.clipboard.writeText(text);
  }
  var ta = document.createElement('textarea');
  ta.value = text;
  ta.style.position = 'fixed';
  ta.style.opacity = '0';
  document.body.appendChild(ta);
  ta.select();
  try { document.execCommand('copy'); } finally { document.body.removeChild(ta); }
  return Promise.resolve();
}

function clearSearch(scope) {
  scope.querySelectorAll('.dumpx-match,.dumpx-match-context').forEach(function(el){
    el.classList.remove('dumpx-match', 'dumpx-match-context');
  });
}

function search(node) {
  var term = window.prompt('Search within this node');
  var root = node.closest('.dumpx');
  clearSearch(root);
  if (!term) { return; }
  term = term.toLowerCase();
  var hits = 0;
  node.querySelectorAll('[data-node-type]').forEach(function(el){
    var label = el.querySelector(':scope > summary > .dumpx-text, :scope > .dumpx-text, :scope > summary > .dumpx-key, :scope > .dumpx-key');
    var text = label ? label.textContent : '';
    var expr = el.getAttribute('data-expression') || '';
    if (text.toLowerCase().indexOf(term) < 0 && expr.toLowerCase().indexOf(term) < 0) { return; }
    hits++;
    el.classList.add('dumpx-match');
    var up = el.parentElement;
    while (up && up !== node.parentElement) {
      if (up.tagName === 'DETAILS') {
        up.open = true;
        if (up !== el) { up.classList.add('dumpx-match-context'); }
      }
      up = up.parentElement;
    }
  });
  if (hits === 0) { window.alert('No matches for "' + term + '"'); }
}

function unwrap(value) {
  if (value && typeof value === 'object' && !Array.isArray(value)) {
    if (value.__truncated__ && value.__items__ !== undefined) { return unwrap(value.__items__); }
    if (value.__class !== undefined && value.properties !== undefined) { return unwrap(value.properties); }
  }
  return value;
}

function rowsOf(value) {
  value = unwrap(value);
  if (Array.isArray(value)) { return value.map(function(r, i){ return [String(i), unwrap(r)]; }); }
  if (value && typeof value === 'object') {
    return Object.keys(value).map(function(k){ return [k, unwrap(value[k])]; });
  }
  return [];
}

function cell(v) {
  if (v === null) { return 'null'; }
  if (typeof v === 'object') { return JSON.stringify(v); }
  return String(v);
}

function typeOf(v) {
  if (v === null) { return 'null'; }
  if (Array.isArray(v)) { return 'array'; }
  return typeof v;
}

function table(node) {
  var existing = node.querySelector(':scope > .dumpx-table');
  if (existing) { existing.remove(); return; }
  var rows = rowsOf(payload(node));
  if (!rows.length) { return; }
  var cols = [];
  rows.forEach(function(r){
    var v = r[1];
    if (v && typeof v === 'object') {
      Object.keys(v).forEach(function(k){ if (cols.indexOf(k) < 0) { cols.push(k); } });
    }
  });
  var meta = node.closest('.dumpx').getAttribute('data-table-meta') === 'true';
  var t = document.createElement('table');
  t.className = 'dumpx-table';
  if (meta) {
    var cap = document.createElement('caption');
    cap.textContent = rows.length + ' rows, ' + cols.length + ' columns';
    t.appendChild(cap);
  }
  var head = t.insertRow();
  ['#'].concat(cols).forEach(function(c){
    var th = document.createElement('th');
    th.textContent = c;
    head.appendChild(th);
  });
  if (meta) {
    var types = t.insertRow();
    types.insertCell().textContent = '';
    cols.forEach(function(c){
      var seen = {};
      rows.forEach(function(r){ if (r[1] && typeof r[1] === 'object' && c in r[1]) { seen[typeOf(r[1][c])] = true; } });
      types.insertCell().textContent = Object.keys(seen).join('|');
    });
  }
  rows.forEach(function(r){
    var tr = t.insertRow();
    tr.insertCell().textContent = r[0];
    cols.forEach(function(c){
      var v = r[1];
      tr.insertCell().textContent = (v && typeof v === 'object' && c in v) ? cell(v[c]) : '';
    });
  });
  if (node.tagName === 'DETAILS') { node.open = true; }
  var anchor = node.querySelector(':scope > summary');
  if (anchor) { anchor.after(t); } else { node.appendChild(t); }
}

document.addEventListener('click', function(ev){
  var btn = ev.target.closest('.dumpx button');
  if (!btn) { return; }
  ev.preventDefault();
  ev.stopPropagation();
  var action = btn.getAttribute('data-action');
  if (action === 'theme') {
    var root = btn.closest('.dumpx');
    applyTheme(nextTheme(root.getAttribute('data-theme-preference')), true);
    return;
  }
  var node = owner(btn);
  if (!node) { return; }
  if (action === 'copy') {
    var v = payload(node);
    copyText(JSON.stringify(v === undefined ? null : v, null, 2)).then(function(){
      btn.textContent = 'copied';
      setTimeout(function(){ btn.textContent = 'copy'; }, 1200);
    });
  } else if (action === 'search') {
    search(node);
  } else if (action === 'table') {
    table(node);
  }
}, true);
})();
`
