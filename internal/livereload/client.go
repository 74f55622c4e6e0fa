package livereload

// ClientScript is the browser module bundled into development renderer pages. The
// first event after connecting records the current build; any later successful
// build reloads the page.
const ClientScript = `(() => {
  if (typeof window === "undefined" || window.__FORGEPACK_LR__) return;
  window.__FORGEPACK_LR__ = true;
  let current = null;
  function connect() {
    const es = new EventSource("` + Path + `");
    es.onmessage = (e) => {
      const id = String(e.data || "");
      if (id.startsWith("` + ErrorPrefix + `")) {
        console.warn("[forgepack] rebuild failed, keeping current page");
        return;
      }
      if (current === null) {
        current = id;
        return;
      }
      if (id !== current) {
        console.log("[forgepack] change detected, reloading");
        location.reload();
      }
    };
    es.onerror = () => {
      es.close();
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
`
